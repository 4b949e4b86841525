package config

import "time"

// PresenceMode selects how the client derives the online-user list.
type PresenceMode string

const (
	// PresenceSnapshots trusts explicit users frames from the server.
	PresenceSnapshots PresenceMode = "snapshots"
	// PresenceInfer derives joins and leaves from system message text.
	// Best-effort only; used against servers that never send snapshots.
	PresenceInfer PresenceMode = "infer"
)

// Config holds server and client configuration values.
type Config struct {
	// Server side.
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Client side.
	ServerURL string       `mapstructure:"server_url" yaml:"server_url"`
	Presence  PresenceMode `mapstructure:"presence" yaml:"presence"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8000",
		DatabasePath:      "roomchat.db",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		ServerURL:         "http://localhost:8000",
		Presence:          PresenceSnapshots,
		LogLevel:          "info",
	}
}
