package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"smd/internal/config"
	"smd/internal/logging"
)

var (
	flagConfigPath string
	flagAddress    string
	flagUsername   string
	flagLogLevel   string
	flagLogFormat  string
	flagPIDFile    string
)

// newRootCmd builds the smd-client command: a single positional argument
// naming the local sync root directory (spec §6), performing exactly one
// Connect-through-Disconnect session. The "watch" subcommand repeats this
// on every filesystem change instead of running once.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "smd-client <root-dir>",
		Short:         "SMD file-synchronization client",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0])
		},
	}

	addCommonFlags(cmd)
	cmd.AddCommand(newWatchCmd())

	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagConfigPath, "config", "", "TOML config file path")
	cmd.Flags().StringVar(&flagAddress, "address", "", "server address (overrides config)")
	cmd.Flags().StringVar(&flagUsername, "username", "", "sync identity (overrides config)")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	cmd.Flags().StringVar(&flagLogFormat, "log-format", "", "auto|text|json (overrides config)")
}

func loadClientConfig(root string) (*config.ClientConfig, *slog.Logger, error) {
	bootstrapLogger := logging.Build(logging.Options{Level: slog.LevelWarn})

	cfg, err := config.LoadOrDefaultClient(flagConfigPath, bootstrapLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	applyClientFlagOverrides(cfg, root)

	if err := config.ValidateClient(cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger := logging.Build(logging.Options{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.Format(cfg.Logging.Format),
	})

	return cfg, logger, nil
}

func applyClientFlagOverrides(cfg *config.ClientConfig, root string) {
	cfg.Sync.Root = root

	if flagAddress != "" {
		cfg.Network.Address = flagAddress
	}

	if flagUsername != "" {
		cfg.Sync.Username = flagUsername
	}

	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}

	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
}
