package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadServer reads and decodes a TOML file on top of DefaultServerConfig,
// validates the result, and returns it.
func LoadServer(path string, logger *slog.Logger) (*ServerConfig, error) {
	logger.Debug("loading server config file", "path", path)

	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := ValidateServer(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefaultServer loads path if it exists, otherwise returns
// DefaultServerConfig unmodified. This gives both binaries a zero-config
// first-run experience.
func LoadOrDefaultServer(path string, logger *slog.Logger) (*ServerConfig, error) {
	if path == "" {
		return DefaultServerConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultServerConfig(), nil
	}

	return LoadServer(path, logger)
}

// LoadClient reads and decodes a TOML file on top of DefaultClientConfig,
// validates the result, and returns it.
func LoadClient(path string, logger *slog.Logger) (*ClientConfig, error) {
	logger.Debug("loading client config file", "path", path)

	cfg := DefaultClientConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := ValidateClient(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefaultClient loads path if it exists, otherwise returns
// DefaultClientConfig unmodified.
func LoadOrDefaultClient(path string, logger *slog.Logger) (*ClientConfig, error) {
	if path == "" {
		return DefaultClientConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultClientConfig(), nil
	}

	return LoadClient(path, logger)
}
