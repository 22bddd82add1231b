package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"smd/internal/cliutil"
	"smd/internal/config"
	"smd/internal/session"
	"smd/internal/workspace"
)

// runSync performs exactly one Connect-through-Disconnect session against
// the configured server, matching spec.md's mandatory one-shot client
// behavior.
func runSync(cmd *cobra.Command, root string) error {
	cfg, logger, err := loadClientConfig(root)
	if err != nil {
		return err
	}

	ctx := cliutil.ShutdownContext(cmd.Context(), logger)

	stats, err := syncOnce(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cliutil.Statusf(cmd.OutOrStdout(), false,
		"synced: %d uploaded (%s), %d downloaded (%s)\n",
		stats.FilesUploaded, cliutil.FormatSize(stats.BytesUploaded),
		stats.FilesDownloaded, cliutil.FormatSize(stats.BytesDownloaded))

	return nil
}

// syncOnce resolves the local workspace, dials the server, and runs one
// client-side session to completion.
func syncOnce(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger) (session.Stats, error) {
	ws, err := workspace.ResolveClient(cfg.Sync.Root, cfg.Sync.Username)
	if err != nil {
		return session.Stats{}, fmt.Errorf("resolving local workspace: %w", err)
	}

	conn, err := dial(ctx, cfg.Network.Address, cfg.Retry, logger)
	if err != nil {
		return session.Stats{}, err
	}
	defer conn.Close()

	return session.Run(ctx, conn, session.ClientDeps{
		Username:      cfg.Sync.Username,
		StorageDir:    ws.StorageDirectory,
		StateFilePath: ws.StateFilePath,
		Logger:        logger,
	})
}
