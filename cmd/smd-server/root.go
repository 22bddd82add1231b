package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smd/internal/cliutil"
	"smd/internal/config"
	"smd/internal/ledger"
	"smd/internal/logging"
	"smd/internal/session"
)

var (
	flagConfigPath string
	flagAddress    string
	flagLogLevel   string
	flagLogFormat  string
	flagPIDFile    string
)

// newRootCmd builds the smd-server command: a single positional argument
// naming the sync root directory (spec §6), serving indefinitely until
// signaled.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "smd-server <root-dir>",
		Short:         "SMD file-synchronization server",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&flagConfigPath, "config", "", "TOML config file path")
	cmd.Flags().StringVar(&flagAddress, "address", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	cmd.Flags().StringVar(&flagLogFormat, "log-format", "", "auto|text|json (overrides config)")
	cmd.Flags().StringVar(&flagPIDFile, "pid-file", "", "write a PID file and hold an exclusive lock for the server's lifetime")

	return cmd
}

func runServer(cmd *cobra.Command, root string) error {
	bootstrapLogger := logging.Build(logging.Options{Level: slog.LevelWarn})

	cfg, err := config.LoadOrDefaultServer(flagConfigPath, bootstrapLogger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyServerFlagOverrides(cfg)

	if err := config.ValidateServer(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := logging.Build(logging.Options{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.Format(cfg.Logging.Format),
	})

	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root directory: %w", err)
	}

	ctx := cliutil.ShutdownContext(cmd.Context(), logger)

	var cleanupPID func()

	if flagPIDFile != "" {
		cleanupPID, err = cliutil.WritePIDFile(flagPIDFile)
		if err != nil {
			return fmt.Errorf("writing PID file: %w", err)
		}

		defer cleanupPID()
	}

	ledgerPath := cfg.Ledger.Path
	if !filepath.IsAbs(ledgerPath) {
		ledgerPath = filepath.Join(root, ledgerPath)
	}

	led, err := ledger.Open(ctx, ledgerPath, logger)
	if err != nil {
		return fmt.Errorf("opening session ledger: %w", err)
	}
	defer led.Close()

	listener, err := net.Listen("tcp", cfg.Network.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Network.Address, err)
	}
	defer listener.Close()

	logger.Info("smd-server listening", "address", cfg.Network.Address, "root", root)

	return acceptLoop(ctx, listener, root, logger, led)
}

func applyServerFlagOverrides(cfg *config.ServerConfig) {
	if flagAddress != "" {
		cfg.Network.Address = flagAddress
	}

	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}

	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
}

// acceptLoop accepts connections until ctx is canceled, spawning one
// session per connection. It waits for in-flight sessions to finish before
// returning (spec §5: the state-file write at session end must complete
// before the socket is fully released).
func acceptLoop(ctx context.Context, listener net.Listener, root string, logger *slog.Logger, led *ledger.Ledger) error {
	group, groupCtx := errgroup.WithContext(context.Background())

	go func() {
		<-ctx.Done()
		logger.Info("smd-server shutting down: closing listener")
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			logger.Warn("smd-server: accept failed", "error", err)

			continue
		}

		group.Go(func() error {
			defer conn.Close()

			if err := session.Serve(groupCtx, conn, session.ServerDeps{Root: root, Logger: logger, Ledger: led}); err != nil {
				logger.Warn("smd-server: session failed", "remote", conn.RemoteAddr(), "error", err)
			}

			return nil
		})
	}

	return group.Wait()
}
