package config

import (
	"fmt"
	"net"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/factory"
)

// Validate checks the complete configuration.
func Validate(config *Config) error {
	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := validateDatabase(&config.Database); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}
	if err := validateExchange(&config.Exchange); err != nil {
		return fmt.Errorf("exchange config validation failed: %w", err)
	}
	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	return nil
}

func validateServer(server *ServerConfig) error {
	if _, _, err := net.SplitHostPort(server.Bind); err != nil {
		return fmt.Errorf("invalid bind address %q: %w", server.Bind, err)
	}
	if server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", server.RequestTimeoutSeconds)
	}
	if server.WebsocketPingSeconds <= 0 {
		return fmt.Errorf("websocket_ping_seconds must be positive, got %d", server.WebsocketPingSeconds)
	}
	return nil
}

func validateDatabase(database *DatabaseConfig) error {
	if database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if database.CheckpointCacheSize <= 0 {
		return fmt.Errorf("checkpoint_cache_size must be positive, got %d", database.CheckpointCacheSize)
	}
	if database.CheckpointIntervalSeconds <= 0 {
		return fmt.Errorf("checkpoint_interval_seconds must be positive, got %d", database.CheckpointIntervalSeconds)
	}
	return nil
}

func validateExchange(exchange *ExchangeConfig) error {
	if exchange.Admin == "" || !common.IsHexAddress(exchange.Admin) {
		return fmt.Errorf("admin must be a hex address, got %q", exchange.Admin)
	}
	if exchange.OwnerFee > factory.MaxFee {
		return fmt.Errorf("owner_fee %d exceeds maximum %d", exchange.OwnerFee, factory.MaxFee)
	}
	if exchange.LPFee > factory.MaxFee {
		return fmt.Errorf("lp_fee %d exceeds maximum %d", exchange.LPFee, factory.MaxFee)
	}
	if _, err := uint256.FromDecimal(exchange.ListingFee); err != nil {
		return fmt.Errorf("invalid listing_fee %q: %w", exchange.ListingFee, err)
	}
	if _, err := uint256.FromDecimal(exchange.CompetitionFee); err != nil {
		return fmt.Errorf("invalid competition_fee %q: %w", exchange.CompetitionFee, err)
	}
	return nil
}

func validateLogging(logging *LoggingConfig) error {
	switch logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", logging.Level)
	}
}

// AdminAddress parses the configured admin address.
func (c *ExchangeConfig) AdminAddress() common.Address {
	return common.HexToAddress(c.Admin)
}

// ListingFeeAmount parses the configured listing fee.
func (c *ExchangeConfig) ListingFeeAmount() *uint256.Int {
	fee, err := uint256.FromDecimal(c.ListingFee)
	if err != nil {
		return uint256.NewInt(0)
	}
	return fee
}

// CompetitionFeeAmount parses the configured competition fee.
func (c *ExchangeConfig) CompetitionFeeAmount() *uint256.Int {
	fee, err := uint256.FromDecimal(c.CompetitionFee)
	if err != nil {
		return uint256.NewInt(0)
	}
	return fee
}
