// Package ledger implements the server's session audit trail: an embedded
// SQLite database recording one row per sync session (spec §4.10,
// expansion). The ledger is purely observational — it never influences
// reconciliation or transfer outcomes, and a server can run with ledger
// writes failing without affecting protocol correctness beyond losing the
// audit row.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver, registers as "sqlite"
)

// Outcome classifies how a session ended.
type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
)

const walJournalSizeLimit = 67108864 // 64 MiB

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID              string
	Username        string
	StartedAt       time.Time
	EndedAt         sql.NullTime
	BytesUploaded   int64
	BytesDownloaded int64
	FilesUploaded   int64
	FilesDownloaded int64
	Outcome         Outcome
}

// Ledger wraps the session audit database.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the SQLite database at path, applies
// pending migrations, and returns a ready Ledger. Use ":memory:" in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db, logger: logger}, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("ledger: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// Close closes the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginSession inserts a new in-progress session row and returns its ID.
func (l *Ledger) BeginSession(ctx context.Context, username string) (string, error) {
	id := uuid.NewString()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sessions (id, username, started_at, outcome) VALUES (?, ?, ?, ?)`,
		id, username, time.Now().UTC(), OutcomeInProgress,
	)
	if err != nil {
		return "", fmt.Errorf("ledger: begin session for %s: %w", username, err)
	}

	return id, nil
}

// CompleteSession marks a session finished with the given transfer totals
// and outcome.
func (l *Ledger) CompleteSession(ctx context.Context, id string, bytesUploaded, bytesDownloaded, filesUploaded, filesDownloaded int64, outcome Outcome) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, bytes_uploaded = ?, bytes_downloaded = ?,
		 files_uploaded = ?, files_downloaded = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC(), bytesUploaded, bytesDownloaded, filesUploaded, filesDownloaded, outcome, id,
	)
	if err != nil {
		return fmt.Errorf("ledger: complete session %s: %w", id, err)
	}

	return nil
}

// Get retrieves a single session record by ID.
func (l *Ledger) Get(ctx context.Context, id string) (SessionRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, username, started_at, ended_at, bytes_uploaded, bytes_downloaded,
		 files_uploaded, files_downloaded, outcome FROM sessions WHERE id = ?`, id)

	return scanRecord(row)
}

// ListByUsername returns all sessions for username, most recent first.
func (l *Ledger) ListByUsername(ctx context.Context, username string) ([]SessionRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, username, started_at, ended_at, bytes_uploaded, bytes_downloaded,
		 files_uploaded, files_downloaded, outcome FROM sessions
		 WHERE username = ? ORDER BY started_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("ledger: list sessions for %s: %w", username, err)
	}
	defer rows.Close()

	var records []SessionRecord

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (SessionRecord, error) {
	var rec SessionRecord

	err := s.Scan(&rec.ID, &rec.Username, &rec.StartedAt, &rec.EndedAt,
		&rec.BytesUploaded, &rec.BytesDownloaded, &rec.FilesUploaded, &rec.FilesDownloaded, &rec.Outcome)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("ledger: scan session row: %w", err)
	}

	return rec, nil
}
