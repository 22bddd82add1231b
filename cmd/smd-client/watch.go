package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"smd/internal/cliutil"
	"smd/internal/config"
)

var flagWatchPIDFile string

// newWatchCmd builds the "watch" subcommand: an fsnotify-driven loop that
// runs a sync session on every debounced batch of filesystem events
// (expansion beyond spec.md's mandatory one-shot session).
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "watch <root-dir>",
		Short:         "Sync continuously, triggered by local filesystem changes",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0])
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().StringVar(&flagWatchPIDFile, "pid-file", "", "write a PID file and hold an exclusive lock for as long as watch runs")

	return cmd
}

func runWatch(cmd *cobra.Command, root string) error {
	cfg, logger, err := loadClientConfig(root)
	if err != nil {
		return err
	}

	ctx := cliutil.ShutdownContext(cmd.Context(), logger)

	if flagWatchPIDFile != "" {
		cleanup, err := cliutil.WritePIDFile(flagWatchPIDFile)
		if err != nil {
			return fmt.Errorf("writing PID file: %w", err)
		}

		defer cleanup()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting filesystem watcher: %w", err)
	}
	defer watcher.Close()

	storageDir := filepath.Join(root, "storage")
	if err := addRecursive(watcher, storageDir); err != nil {
		return fmt.Errorf("watching %s: %w", storageDir, err)
	}

	debounce := time.Duration(cfg.Watch.DebounceSeconds) * time.Second

	logger.Info("smd-client watch: running initial sync")

	if _, err := syncOnce(ctx, cfg, logger); err != nil {
		logger.Error("smd-client watch: initial sync failed", "error", err)
	}

	return watchLoop(ctx, watcher, debounce, cfg, logger)
}

// addRecursive registers every directory under root with watcher, since
// fsnotify only watches the directories it is explicitly given, not their
// descendants.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return watcher.Add(path)
		}

		return nil
	})
}

// watchLoop coalesces bursts of fsnotify events into a single debounced
// sync trigger, per event-driven watcher idioms (vs. re-syncing once per
// raw event, which would thrash on editors that write several events per
// save).
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, cfg *config.ClientConfig, logger *slog.Logger) error {
	var timer *time.Timer

	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			logger.Debug("smd-client watch: event", "name", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("smd-client watch: watcher error", "error", watchErr)

		case <-trigger:
			logger.Info("smd-client watch: syncing after debounced change")

			if _, err := syncOnce(ctx, cfg, logger); err != nil {
				logger.Error("smd-client watch: sync failed", "error", err)
			}
		}
	}
}
