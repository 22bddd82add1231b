// Package config implements TOML configuration loading, defaulting, and
// validation for the smd-server and smd-client binaries, following the same
// default→file→flag layering the teacher repository uses for its own
// multi-drive configuration.
package config

// ServerConfig is the top-level configuration for smd-server.
type ServerConfig struct {
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
	Ledger  LedgerConfig  `toml:"ledger"`
}

// ClientConfig is the top-level configuration for smd-client.
type ClientConfig struct {
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
	Sync    SyncConfig    `toml:"sync"`
	Watch   WatchConfig   `toml:"watch"`
	Retry   RetryConfig   `toml:"retry"`
}

// NetworkConfig controls the listen/connect address, shared by both
// binaries (spec §6: default "127.0.0.1:1234").
type NetworkConfig struct {
	Address string `toml:"address"`
}

// LoggingConfig controls log verbosity and output shape.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LedgerConfig controls the server's session audit ledger (spec §4.10,
// expansion — not part of the mandatory JSON snapshot).
type LedgerConfig struct {
	Path string `toml:"path"`
}

// SyncConfig controls the client's identity and local sync root.
type SyncConfig struct {
	Username string `toml:"username"`
	Root     string `toml:"root"`
}

// WatchConfig controls the client's optional fsnotify-driven watch mode
// (spec §4.11 expansion).
type WatchConfig struct {
	DebounceSeconds int `toml:"debounce_seconds"`
}

// RetryConfig controls the client's bounded dial-retry policy (spec §7
// expansion). This governs only the initial TCP connection attempt, never
// in-session protocol semantics.
type RetryConfig struct {
	MaxAttempts    int    `toml:"max_attempts"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
}
