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

// ClientDeps bundles the client-side collaborators one session needs.
type ClientDeps struct {
	Username      string
	StorageDir    string
	StateFilePath string
	Logger        *slog.Logger
}

// Run drives one complete client-side session over conn: Connect, Update,
// Delete, Upload, Download, Disconnect, in that order.
func Run(ctx context.Context, conn net.Conn, deps ClientDeps) (Stats, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var stats Stats

	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeConnect, []byte(deps.Username))); err != nil {
		return stats, fmt.Errorf("session: connect: send: %w", err)
	}

	frame, err := smdproto.ReceiveCtx(ctx, conn)
	if err != nil {
		return stats, fmt.Errorf("session: connect: %w", err)
	}

	if frame.Type != smdproto.TypeConnect || string(frame.Data) != "OK" {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, fmt.Errorf("session: connect: rejected by server (%s %q)", frame.Type, frame.Data)
	}

	stored, err := snapshot.Load(deps.StateFilePath)
	if err != nil {
		return stats, fmt.Errorf("session: update: load snapshot: %w", err)
	}

	sc := scanner.New(logger)

	current, scanErr := sc.Scan(ctx, deps.StorageDir, stored)
	if scanErr != nil {
		logger.Warn("session: scan completed with non-fatal errors", "error", scanErr)
	}

	data, err := json.Marshal(current)
	if err != nil {
		return stats, fmt.Errorf("session: update: marshal snapshot: %w", err)
	}

	if err := smdproto.SendCtx(ctx, conn, smdproto.New(smdproto.TypeUpdateRequest, data)); err != nil {
		return stats, fmt.Errorf("session: update: send: %w", err)
	}

	frame, err = smdproto.ReceiveCtx(ctx, conn)
	if err != nil {
		return stats, fmt.Errorf("session: update: %w", err)
	}

	if frame.Type != smdproto.TypeUpdate {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, fmt.Errorf("session: update: unexpected frame type %s", frame.Type)
	}

	var answer UpdateAnswer
	if err := json.Unmarshal(frame.Data, &answer); err != nil {
		return stats, fmt.Errorf("session: update: parse answer: %w", err)
	}

	for path, entry := range answer.ClientTodo {
		if entry.State != snapshot.StateDeleted {
			continue
		}

		if err := transfer.Remove(deps.StorageDir, path); err != nil {
			logger.Warn("session: delete failed", "path", path, "error", err)
		}
	}

	uploaded, err := sendFiles(ctx, conn, deps.StorageDir, answer.ServerTodo, smdproto.TypeUpload, logger)
	if err != nil {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, err
	}

	stats.FilesUploaded, stats.BytesUploaded = uploaded.count, uploaded.bytes

	downloaded, err := receiveFiles(ctx, conn, deps.StorageDir, answer.ClientTodo, smdproto.TypeDownload, logger)
	if err != nil {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, err
	}

	stats.FilesDownloaded, stats.BytesDownloaded = downloaded.count, downloaded.bytes

	frame, err = smdproto.ReceiveCtx(ctx, conn)
	if err != nil {
		return stats, fmt.Errorf("session: disconnect: %w", err)
	}

	if frame.Type != smdproto.TypeDisconnect {
		bestEffortDisconnect(ctx, conn, logger)
		return stats, fmt.Errorf("session: disconnect: unexpected frame type %s", frame.Type)
	}

	halfCloseWrite(conn, logger)

	if err := persistFinalSnapshot(ctx, deps.StorageDir, deps.StateFilePath, downloaded.missing, logger); err != nil {
		return stats, fmt.Errorf("session: disconnect: persist snapshot: %w", err)
	}

	logger.Info("session: complete",
		"username", deps.Username,
		"files_uploaded", stats.FilesUploaded,
		"files_downloaded", stats.FilesDownloaded,
	)

	return stats, nil
}
