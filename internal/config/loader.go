package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load builds the configuration in priority order: defaults, then the config
// file (if path is non-empty), then LOVELYD_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("LOVELYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = path

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind", ":8080")
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.websocket_ping_seconds", 54)

	// Database defaults
	v.SetDefault("database.path", "/var/lib/lovelyd/db")
	v.SetDefault("database.checkpoint_cache_size", 256)
	v.SetDefault("database.checkpoint_interval_seconds", 60)

	// Exchange defaults: 0.1% protocol fee, 0.2% LP fee, no listing or
	// competition fees until the operator sets them.
	v.SetDefault("exchange.chain_id", 1)
	v.SetDefault("exchange.admin", "")
	v.SetDefault("exchange.owner_fee", 10)
	v.SetDefault("exchange.lp_fee", 20)
	v.SetDefault("exchange.listing_fee", "0")
	v.SetDefault("exchange.competition_fee", "0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}
