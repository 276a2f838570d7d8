// Package config defines the top-level configuration for markethub and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETHUB_* environment variables.
type Config struct {
	Server   ServerConfig  `toml:"server"`
	Hub      HubConfig     `toml:"hub"`
	Binance  BinanceConfig `toml:"binance"`
	Redis    RedisConfig   `toml:"redis"`
	Auth     AuthConfig    `toml:"auth"`
	LogLevel string        `toml:"log_level"`
}

// ServerConfig holds the HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the broadcast endpoint; empty disables it.
	APIKey string `toml:"api_key"`
	// RateLimit / RateWindowSec apply per client IP at the HTTP edge
	// (including websocket upgrades) when Redis is enabled.
	RateLimit     int `toml:"rate_limit"`
	RateWindowSec int `toml:"rate_window_sec"`
}

// HubConfig holds per-websocket-connection policy.
type HubConfig struct {
	RateLimit            int `toml:"rate_limit"`
	RateWindowSec        int `toml:"rate_window_sec"`
	HeartbeatIntervalSec int `toml:"heartbeat_interval_sec"`
	HeartbeatTimeoutSec  int `toml:"heartbeat_timeout_sec"`
}

// BinanceConfig holds the upstream exchange endpoints and feed parameters.
type BinanceConfig struct {
	WSHost           string   `toml:"ws_host"`
	RESTHost         string   `toml:"rest_host"`
	Symbols          []string `toml:"symbols"`
	ReconnectWaitSec int      `toml:"reconnect_wait_sec"`
	StatsIntervalMin int      `toml:"stats_interval_min"`
	StatsRetrySec    int      `toml:"stats_retry_sec"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: it backs
// the snapshot mirror and the HTTP edge rate limiter.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// AuthConfig holds token verification parameters.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			RateLimit:     60,
			RateWindowSec: 60,
		},
		Hub: HubConfig{
			RateLimit:            100,
			RateWindowSec:        60,
			HeartbeatIntervalSec: 30,
			HeartbeatTimeoutSec:  60,
		},
		Binance: BinanceConfig{
			WSHost:           "wss://stream.binance.com:9443",
			RESTHost:         "https://api.binance.com",
			Symbols:          []string{"BTCUSDT", "ETHUSDT"},
			ReconnectWaitSec: 5,
			StatsIntervalMin: 5,
			StatsRetrySec:    60,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	if c.Hub.RateLimit <= 0 {
		errs = append(errs, "hub: rate_limit must be positive")
	}
	if c.Hub.RateWindowSec <= 0 {
		errs = append(errs, "hub: rate_window_sec must be positive")
	}
	if c.Hub.HeartbeatIntervalSec <= 0 {
		errs = append(errs, "hub: heartbeat_interval_sec must be positive")
	}
	if c.Hub.HeartbeatTimeoutSec <= c.Hub.HeartbeatIntervalSec {
		errs = append(errs, "hub: heartbeat_timeout_sec must exceed heartbeat_interval_sec")
	}

	if c.Binance.WSHost == "" {
		errs = append(errs, "binance: ws_host must not be empty")
	}
	if c.Binance.RESTHost == "" {
		errs = append(errs, "binance: rest_host must not be empty")
	}
	if len(c.Binance.Symbols) == 0 {
		errs = append(errs, "binance: at least one symbol must be configured")
	}
	if c.Binance.ReconnectWaitSec <= 0 {
		errs = append(errs, "binance: reconnect_wait_sec must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth: jwt_secret must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
