package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"smd/internal/scanner"
	"smd/internal/smdproto"
	"smd/internal/snapshot"
	"smd/internal/transfer"
)

// transferTotals accumulates the byte/file counts of one Upload or
// Download phase. missing is only populated by receiveFiles: the todo
// filenames that never arrived before the Updated frame (spec §9 Open
// Question 3).
type transferTotals struct {
	count   int
	bytes   int64
	missing []string
}

// sendFiles transmits every non-Deleted entry in todo as one frame of type
// t per file, followed by an empty Updated frame. Used by the client for
// Upload and by the server for Download.
func sendFiles(ctx context.Context, conn net.Conn, storageDir string, todo snapshot.Files, t smdproto.Type, logger *slog.Logger) (transferTotals, error) {
	var totals transferTotals

	for path, entry := range todo {
		if entry.State == snapshot.StateDeleted {
			continue
		}

		unit, err := transfer.Read(storageDir, path, entry)
		if err != nil {
			return totals, fmt.Errorf("session: %s: read %s: %w", t, path, err)
		}

		data, err := json.Marshal(unit)
		if err != nil {
			return totals, fmt.Errorf("session: %s: marshal %s: %w", t, path, err)
		}

		if err := smdproto.SendCtx(ctx, conn, smdproto.New(t, data)); err != nil {
			return totals, fmt.Errorf("session: %s: send %s: %w", t, path, err)
		}

		totals.count++
		totals.bytes += int64(len(unit.Data))

		logger.Debug("session: file sent", "type", t.String(), "path", path, "bytes", len(unit.Data))
	}

	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeUpdated, nil)); err != nil {
		return totals, fmt.Errorf("session: %s: send updated: %w", t, err)
	}

	return totals, nil
}

// receiveFiles reads frames of type t until an Updated frame arrives,
// writing each TransferUnit whose filename is a member of todo. Unknown
// filenames are logged and discarded, not fatal; any other frame type is
// fatal. Used by the server for Upload and by the client for Download.
//
// On Updated, every non-Deleted todo entry that was never received is
// recorded in the returned totals.missing and logged as a warning (spec §9
// Open Question 3): the caller must not let persistFinalSnapshot mark those
// paths Unchanged, so a dropped transfer is retried next session instead of
// silently counting as synced.
func receiveFiles(ctx context.Context, conn net.Conn, storageDir string, todo snapshot.Files, t smdproto.Type, logger *slog.Logger) (transferTotals, error) {
	var totals transferTotals

	received := make(map[string]bool, len(todo))

	for {
		frame, err := smdproto.ReceiveCtx(ctx, conn)
		if err != nil {
			return totals, fmt.Errorf("session: %s: %w", t, err)
		}

		switch frame.Type {
		case t:
			var unit transfer.Unit
			if err := json.Unmarshal(frame.Data, &unit); err != nil {
				return totals, fmt.Errorf("session: %s: parse unit: %w", t, err)
			}

			if _, ok := todo[unit.Filename]; !ok {
				logger.Warn("session: unknown filename discarded", "type", t.String(), "filename", unit.Filename)
				continue
			}

			if err := transfer.Write(storageDir, unit); err != nil {
				return totals, fmt.Errorf("session: %s: write %s: %w", t, unit.Filename, err)
			}

			received[unit.Filename] = true
			totals.count++
			totals.bytes += int64(len(unit.Data))

		case smdproto.TypeUpdated:
			for path, entry := range todo {
				if entry.State == snapshot.StateDeleted {
					continue
				}

				if !received[path] {
					totals.missing = append(totals.missing, path)
				}
			}

			if len(totals.missing) > 0 {
				logger.Warn("session: todo entries missing at Updated", "type", t.String(), "filenames", totals.missing)
			}

			return totals, nil

		default:
			return totals, fmt.Errorf("session: %s: unexpected frame type %s", t, frame.Type)
		}
	}
}

// persistFinalSnapshot re-scans storageDir against the snapshot already on
// disk at stateFilePath and overwrites it with the post-transfer result,
// every entry forced to Unchanged (spec §4.5 Disconnect) except those named
// in incomplete, which keep whatever state the rescan naturally assigned
// them (spec §9 Open Question 3): a path this session failed to receive in
// full must not be persisted as synced.
func persistFinalSnapshot(ctx context.Context, storageDir, stateFilePath string, incomplete []string, logger *slog.Logger) error {
	stored, err := snapshot.Load(stateFilePath)
	if err != nil {
		return fmt.Errorf("load snapshot before final scan: %w", err)
	}

	sc := scanner.New(logger)

	final, scanErr := sc.Scan(ctx, storageDir, stored)
	if scanErr != nil {
		logger.Warn("session: final scan completed with non-fatal errors", "error", scanErr)
	}

	preserve := make(map[string]bool, len(incomplete))
	for _, path := range incomplete {
		preserve[path] = true
	}

	return snapshot.StorePreserving(stateFilePath, final, preserve)
}

// bestEffortDisconnect sends a Disconnect frame without surfacing its own
// failure, matching the "best-effort Disconnect" requirement for recovery
// from a protocol error (spec §4.5, §7).
func bestEffortDisconnect(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeDisconnect, nil)); err != nil {
		logger.Debug("session: best-effort disconnect failed", "error", err)
	}
}

// halfCloseWrite closes the write half of conn if the underlying
// connection type supports it (true of *net.TCPConn, false of net.Pipe's
// in-memory conns used in tests, which are left open — the Disconnect
// frame has already signaled session end).
func halfCloseWrite(conn net.Conn, logger *slog.Logger) {
	type writeCloser interface {
		CloseWrite() error
	}

	if wc, ok := conn.(writeCloser); ok {
		if err := wc.CloseWrite(); err != nil {
			logger.Debug("session: half-close failed", "error", err)
		}
	}
}
