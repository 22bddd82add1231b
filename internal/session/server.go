package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"smd/internal/ledger"
	"smd/internal/reconciler"
	"smd/internal/scanner"
	"smd/internal/smdproto"
	"smd/internal/snapshot"
	"smd/internal/transfer"
	"smd/internal/workspace"
)

// ServerDeps bundles the server-side collaborators one session needs.
// Ledger may be nil to disable audit logging entirely.
type ServerDeps struct {
	Root   string
	Logger *slog.Logger
	Ledger *ledger.Ledger
}

// Serve drives one complete server-side session over conn: Connect,
// Update, Delete, Upload, Download, Disconnect, in that order. It returns
// a non-nil error only for conditions the spec treats as fatal; a rejected
// Connect (bad username) is handled entirely within Serve and returns nil.
func Serve(ctx context.Context, conn net.Conn, deps ServerDeps) error {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ws, err := serverConnect(ctx, conn, deps.Root, logger)
	if err != nil {
		return err
	}

	if ws == nil {
		return nil // rejected, already replied KO
	}

	var sessionID string

	if deps.Ledger != nil {
		sessionID, err = deps.Ledger.BeginSession(ctx, ws.Username)
		if err != nil {
			logger.Warn("session: ledger begin failed", "error", err)
		}
	}

	stats, sessErr := serveSession(ctx, conn, ws, logger)

	if deps.Ledger != nil && sessionID != "" {
		outcome := ledger.OutcomeCompleted
		if sessErr != nil {
			outcome = ledger.OutcomeFailed
		}

		completeErr := deps.Ledger.CompleteSession(ctx, sessionID,
			stats.BytesUploaded, stats.BytesDownloaded,
			int64(stats.FilesUploaded), int64(stats.FilesDownloaded), outcome)
		if completeErr != nil {
			logger.Warn("session: ledger complete failed", "error", completeErr)
		}
	}

	return sessErr
}

// serverConnect handles the Connect phase: receive the payload, validate
// and resolve the workspace, and reply OK or KO. A KO reply is not an
// error for the caller — it returns (nil, nil).
func serverConnect(ctx context.Context, conn net.Conn, root string, logger *slog.Logger) (*workspace.Workspace, error) {
	frame, err := smdproto.ReceiveCtx(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("session: connect: %w", err)
	}

	if frame.Type != smdproto.TypeConnect {
		bestEffortDisconnect(ctx, conn, logger)
		return nil, fmt.Errorf("session: connect: unexpected frame type %s", frame.Type)
	}

	username := string(frame.Data)

	ws, err := workspace.Resolve(root, username)
	if err != nil {
		if sendErr := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeConnect, []byte("KO"))); sendErr != nil {
			return nil, fmt.Errorf("session: connect: reply KO: %w", sendErr)
		}

		logger.Warn("session: connect rejected", "username", username, "error", err)

		return nil, nil
	}

	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeConnect, []byte("OK"))); err != nil {
		return nil, fmt.Errorf("session: connect: reply OK: %w", err)
	}

	logger.Info("session: connect accepted", "username", username)

	return &ws, nil
}

// serveSession runs Update through Disconnect for an already-accepted
// connection.
func serveSession(ctx context.Context, conn net.Conn, ws *workspace.Workspace, logger *slog.Logger) (Stats, error) {
	var stats Stats

	frame, err := smdproto.ReceiveCtx(ctx, conn)
	if err != nil {
		return stats, fmt.Errorf("session: update: %w", err)
	}

	if frame.Type != smdproto.TypeUpdateRequest {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, fmt.Errorf("session: update: unexpected frame type %s", frame.Type)
	}

	var clientSnapshot snapshot.Files
	if err := json.Unmarshal(frame.Data, &clientSnapshot); err != nil {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, fmt.Errorf("session: update: parse client snapshot: %w", err)
	}

	storedServer, err := snapshot.Load(ws.StateFilePath)
	if err != nil {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, fmt.Errorf("session: update: load server snapshot: %w", err)
	}

	sc := scanner.New(logger)

	serverSnapshot, scanErr := sc.Scan(ctx, ws.StorageDirectory, storedServer)
	if scanErr != nil {
		logger.Warn("session: scan completed with non-fatal errors", "error", scanErr)
	}

	result := reconciler.New(logger).Reconcile(serverSnapshot, clientSnapshot)

	answer := UpdateAnswer{ServerTodo: result.ServerTodo, ClientTodo: result.ClientTodo}

	data, err := json.Marshal(answer)
	if err != nil {
		return stats, fmt.Errorf("session: update: marshal answer: %w", err)
	}

	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeUpdate, data)); err != nil {
		return stats, fmt.Errorf("session: update: send answer: %w", err)
	}

	for path, entry := range result.ServerTodo {
		if entry.State != snapshot.StateDeleted {
			continue
		}

		if err := transfer.Remove(ws.StorageDirectory, path); err != nil {
			logger.Warn("session: delete failed", "path", path, "error", err)
		}
	}

	uploaded, err := receiveFiles(ctx, conn, ws.StorageDirectory, result.ServerTodo, smdproto.TypeUpload, logger)
	if err != nil {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, err
	}

	stats.FilesUploaded, stats.BytesUploaded = uploaded.count, uploaded.bytes

	downloaded, err := sendFiles(ctx, conn, ws.StorageDirectory, result.ClientTodo, smdproto.TypeDownload, logger)
	if err != nil {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, err
	}

	stats.FilesDownloaded, stats.BytesDownloaded = downloaded.count, downloaded.bytes

	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeDisconnect, nil)); err != nil {
		return stats, fmt.Errorf("session: disconnect: send: %w", err)
	}

	halfCloseWrite(conn, logger)

	if err := persistFinalSnapshot(ctx, ws.StorageDirectory, ws.StateFilePath, uploaded.missing, logger); err != nil {
		return stats, fmt.Errorf("session: disconnect: persist snapshot: %w", err)
	}

	logger.Info("session: complete",
		"username", ws.Username,
		"files_uploaded", stats.FilesUploaded,
		"files_downloaded", stats.FilesDownloaded,
	)

	return stats, nil
}
