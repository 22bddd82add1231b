package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sethvargo/go-retry"

	"smd/internal/config"
)

// dial connects to address, retrying the initial TCP connect with
// exponential backoff bounded by cfg.MaxAttempts total attempts. Only the
// connect itself is retried here; once a session begins, any failure is
// fatal to that session (spec §7 treats framing/protocol errors as fatal,
// never auto-retried).
func dial(ctx context.Context, address string, cfg config.RetryConfig, logger *slog.Logger) (net.Conn, error) {
	initial, err := time.ParseDuration(cfg.InitialBackoff)
	if err != nil {
		return nil, fmt.Errorf("dial: parsing initial_backoff: %w", err)
	}

	maxBackoff, err := time.ParseDuration(cfg.MaxBackoff)
	if err != nil {
		return nil, fmt.Errorf("dial: parsing max_backoff: %w", err)
	}

	backoff, err := retry.NewExponential(initial)
	if err != nil {
		return nil, fmt.Errorf("dial: building backoff: %w", err)
	}

	backoff = retry.WithCappedDuration(maxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), backoff)

	var (
		conn    net.Conn
		dialer  net.Dialer
		attempt int
	)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		c, dialErr := dialer.DialContext(ctx, "tcp", address)
		if dialErr != nil {
			logger.Warn("dial: attempt failed", "attempt", attempt, "address", address, "error", dialErr)
			return retry.RetryableError(dialErr)
		}

		conn = c

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial: connecting to %s after %d attempts: %w", address, attempt, err)
	}

	return conn, nil
}
