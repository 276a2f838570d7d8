package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETHUB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETHUB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "MARKETHUB_LOG_LEVEL")

	// ── Server ──
	setInt(&cfg.Server.Port, "MARKETHUB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETHUB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MARKETHUB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MARKETHUB_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateWindowSec, "MARKETHUB_SERVER_RATE_WINDOW_SEC")

	// ── Hub ──
	setInt(&cfg.Hub.RateLimit, "MARKETHUB_HUB_RATE_LIMIT")
	setInt(&cfg.Hub.RateWindowSec, "MARKETHUB_HUB_RATE_WINDOW_SEC")
	setInt(&cfg.Hub.HeartbeatIntervalSec, "MARKETHUB_HUB_HEARTBEAT_INTERVAL_SEC")
	setInt(&cfg.Hub.HeartbeatTimeoutSec, "MARKETHUB_HUB_HEARTBEAT_TIMEOUT_SEC")

	// ── Binance ──
	setStr(&cfg.Binance.WSHost, "MARKETHUB_BINANCE_WS_HOST")
	setStr(&cfg.Binance.RESTHost, "MARKETHUB_BINANCE_REST_HOST")
	setStringSlice(&cfg.Binance.Symbols, "MARKETHUB_BINANCE_SYMBOLS")
	setInt(&cfg.Binance.ReconnectWaitSec, "MARKETHUB_BINANCE_RECONNECT_WAIT_SEC")
	setInt(&cfg.Binance.StatsIntervalMin, "MARKETHUB_BINANCE_STATS_INTERVAL_MIN")
	setInt(&cfg.Binance.StatsRetrySec, "MARKETHUB_BINANCE_STATS_RETRY_SEC")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MARKETHUB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MARKETHUB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETHUB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETHUB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETHUB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETHUB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETHUB_REDIS_TLS_ENABLED")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "MARKETHUB_AUTH_JWT_SECRET")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
