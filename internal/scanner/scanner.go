// Package scanner implements the SMD local state-detection algorithm: it
// walks a storage directory, compares what it finds against a previously
// loaded snapshot, and produces an annotated snapshot where every entry
// carries one of the four lifecycle tags.
package scanner

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the wire-mandated content digest, not used for security.
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/text/unicode/norm"

	"smd/internal/snapshot"
)

// Scanner walks a storage directory and classifies every file relative to
// a previously loaded snapshot.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner. A nil logger discards all output.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scanner{logger: logger}
}

// Scan walks storageDir and returns an annotated snapshot covering every
// regular file found plus every path already present in stored (spec §4.3,
// Testable Property 3: scanner totality).
//
// Directory-enumeration errors below storageDir are non-fatal: the
// offending subtree is treated as empty and the error is accumulated and
// returned alongside the snapshot rather than aborting the scan (spec §7).
// Callers that want scan failures to be fatal should check the returned
// error; callers that only care about best-effort coverage may log it and
// continue.
func (s *Scanner) Scan(ctx context.Context, storageDir string, stored snapshot.Files) (snapshot.Files, error) {
	seen := make(map[string]bool, len(stored))

	var walkErr error

	err := filepath.WalkDir(storageDir, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			// Unreadable subdirectory: skip it silently but remember the
			// error for the caller, per spec §7.
			walkErr = multierr.Append(walkErr, fmt.Errorf("scanner: %s: %w", path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// File vanished between readdir and stat: silently dropped.
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(storageDir, path)
		if relErr != nil {
			walkErr = multierr.Append(walkErr, fmt.Errorf("scanner: relativizing %s: %w", path, relErr))
			return nil
		}

		rel = normalizeRelPath(rel)
		seen[rel] = true

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walk %s: %w", storageDir, err)
	}

	current := make(snapshot.Files, len(stored)+len(seen))

	// Step 2: classify every previously-stored path (Edited/Unchanged/Deleted).
	for path, entry := range stored {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if !seen[path] {
			entry.State = snapshot.StateDeleted
			current[path] = entry

			continue
		}

		full := filepath.Join(storageDir, path)

		info, statErr := os.Stat(full)
		if statErr != nil {
			// Disappeared between enumeration and this stat: treat as deleted.
			entry.State = snapshot.StateDeleted
			current[path] = entry

			continue
		}

		currentMtime := info.ModTime().Unix()
		if entry.Mtime < currentMtime {
			entry.State = snapshot.StateEdited
		} else {
			entry.State = snapshot.StateUnchanged
		}

		current[path] = entry
	}

	// Step 3: every enumerated path not already in stored is Created.
	for path := range seen {
		if _, exists := stored[path]; exists {
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		full := filepath.Join(storageDir, path)

		entry, hashErr := newFileEntry(full)
		if hashErr != nil {
			// File vanished between enumeration and read: silently dropped.
			s.logger.Debug("scanner: file vanished before hashing, dropping", "path", path, "error", hashErr)
			continue
		}

		entry.State = snapshot.StateCreated
		current[path] = entry
	}

	s.logger.Info("scanner: scan complete",
		"storage_dir", storageDir,
		"entries", len(current),
	)

	return current, walkErr
}

// newFileEntry reads mtime, size, and SHA-1 hash for a newly discovered
// file.
func newFileEntry(fullPath string) (snapshot.FileEntry, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return snapshot.FileEntry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return snapshot.FileEntry{}, err
	}

	h := sha1.New() //nolint:gosec
	size, err := io.Copy(h, f)
	if err != nil {
		return snapshot.FileEntry{}, err
	}

	var digest snapshot.Hash
	copy(digest[:], h.Sum(nil))

	return snapshot.FileEntry{
		Mtime: info.ModTime().Unix(),
		Size:  uint64(size),
		Hash:  digest,
	}, nil
}

// normalizeRelPath NFC-normalizes a relative path's components so that
// filesystems which store filenames in NFD form (notably macOS's HFS+/APFS)
// don't produce spurious Created/Deleted pairs against a snapshot persisted
// from NFC-normalized input, matching the cross-platform path handling
// idiom the teacher applies to every path it stores.
func normalizeRelPath(rel string) string {
	return norm.NFC.String(filepath.ToSlash(rel))
}
