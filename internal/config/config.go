// Package config loads and validates the lovelyd node configuration from
// defaults, a TOML file, and LOVELYD_-prefixed environment variables.
package config

import (
	"path/filepath"
)

// Config is the complete lovelyd configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	Exchange ExchangeConfig `toml:"exchange" mapstructure:"exchange"`
	Logging  LoggingConfig  `toml:"logging" mapstructure:"logging"`

	configPath string `toml:"-" mapstructure:"-"`
}

// ServerConfig covers the HTTP/WebSocket API endpoint.
type ServerConfig struct {
	// Bind is the address the API listens on, host:port.
	Bind string `toml:"bind" mapstructure:"bind"`
	// RequestTimeoutSeconds bounds a single RPC request.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	// WebsocketPingSeconds is the keepalive ping interval on event streams.
	WebsocketPingSeconds int `toml:"websocket_ping_seconds" mapstructure:"websocket_ping_seconds"`
}

// DatabaseConfig covers the on-disk stores.
type DatabaseConfig struct {
	// Path is the data directory; the checkpoint and history stores live
	// under it.
	Path string `toml:"path" mapstructure:"path"`
	// CheckpointCacheSize is how many decoded checkpoints stay in memory.
	CheckpointCacheSize int `toml:"checkpoint_cache_size" mapstructure:"checkpoint_cache_size"`
	// CheckpointIntervalSeconds is how often the engine snapshots its state.
	CheckpointIntervalSeconds int `toml:"checkpoint_interval_seconds" mapstructure:"checkpoint_interval_seconds"`
}

// ExchangeConfig covers the exchange engine parameters.
type ExchangeConfig struct {
	ChainID uint64 `toml:"chain_id" mapstructure:"chain_id"`
	// Admin is the exchange admin address, 0x-prefixed hex.
	Admin string `toml:"admin" mapstructure:"admin"`
	// OwnerFee and LPFee are per-10000 swap fee components, each capped
	// at 20.
	OwnerFee uint64 `toml:"owner_fee" mapstructure:"owner_fee"`
	LPFee    uint64 `toml:"lp_fee" mapstructure:"lp_fee"`
	// ListingFee is the token-listing fee in wei of the fee token, decimal.
	ListingFee string `toml:"listing_fee" mapstructure:"listing_fee"`
	// CompetitionFee is the native fee for non-admin competition creators,
	// in wei, decimal.
	CompetitionFee string `toml:"competition_fee" mapstructure:"competition_fee"`
}

// LoggingConfig covers the zap logger setup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" mapstructure:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `toml:"development" mapstructure:"development"`
}

// ConfigPath returns the path the configuration was loaded from, if any.
func (c *Config) ConfigPath() string { return c.configPath }

// CheckpointPath returns the pebble checkpoint store directory.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Database.Path, "checkpoints")
}

// HistoryPath returns the sqlite history database file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Database.Path, "history.db")
}
