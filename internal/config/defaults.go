package config

// defaultAddress is the listen/connect address per spec §6.
const defaultAddress = "127.0.0.1:1234"

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
)

// DefaultServerConfig returns a ServerConfig populated with every field a
// running server needs, suitable as the base layer Load decodes a TOML file
// on top of.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Network: NetworkConfig{Address: defaultAddress},
		Logging: defaultLoggingConfig(),
		Ledger:  LedgerConfig{Path: "smd_ledger.db"},
	}
}

// DefaultClientConfig returns a ClientConfig populated with every field a
// running client needs.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Network: NetworkConfig{Address: defaultAddress},
		Logging: defaultLoggingConfig(),
		Sync:    SyncConfig{Username: "user", Root: "."},
		Watch:   WatchConfig{DebounceSeconds: 2},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: "500ms",
			MaxBackoff:     "30s",
		},
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: defaultLogLevel, Format: defaultLogFormat}
}
