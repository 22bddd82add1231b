package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

// ValidateServer checks all ServerConfig values and returns every error
// found, rather than stopping at the first, so an operator can fix all
// problems in one pass.
func ValidateServer(cfg *ServerConfig) error {
	var errs []error

	errs = append(errs, validateAddress(cfg.Network.Address)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if cfg.Ledger.Path == "" {
		errs = append(errs, errors.New("ledger.path: must not be empty"))
	}

	return errors.Join(errs...)
}

// ValidateClient checks all ClientConfig values and returns every error
// found.
func ValidateClient(cfg *ClientConfig) error {
	var errs []error

	errs = append(errs, validateAddress(cfg.Network.Address)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if cfg.Sync.Username == "" {
		errs = append(errs, errors.New("sync.username: must not be empty"))
	}

	if cfg.Sync.Root == "" {
		errs = append(errs, errors.New("sync.root: must not be empty"))
	}

	if cfg.Watch.DebounceSeconds < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_seconds: must be >= 0, got %d", cfg.Watch.DebounceSeconds))
	}

	errs = append(errs, validateRetry(&cfg.Retry)...)

	return errors.Join(errs...)
}

func validateAddress(addr string) []error {
	if addr == "" {
		return []error{errors.New("network.address: must not be empty")}
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		return []error{fmt.Errorf("network.address: %w", err)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("logging.level: must be one of debug, info, warn, error; got %q", l.Level))
	}

	if !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("logging.format: must be one of auto, text, json; got %q", l.Format))
	}

	return errs
}

func validateRetry(r *RetryConfig) []error {
	var errs []error

	if r.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts: must be >= 1, got %d", r.MaxAttempts))
	}

	if _, err := time.ParseDuration(r.InitialBackoff); err != nil {
		errs = append(errs, fmt.Errorf("retry.initial_backoff: %w", err))
	}

	if _, err := time.ParseDuration(r.MaxBackoff); err != nil {
		errs = append(errs, fmt.Errorf("retry.max_backoff: %w", err))
	}

	return errs
}
