package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/markethub/internal/auth"
	"github.com/alanyoungcy/markethub/internal/cache"
	"github.com/alanyoungcy/markethub/internal/cache/redis"
	"github.com/alanyoungcy/markethub/internal/config"
	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/alanyoungcy/markethub/internal/feed"
	"github.com/alanyoungcy/markethub/internal/hub"
	"github.com/alanyoungcy/markethub/internal/platform/binance"
	"github.com/alanyoungcy/markethub/internal/server"
	"github.com/alanyoungcy/markethub/internal/server/handler"
)

// Dependencies bundles every component the application lifecycle needs to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Snapshots *cache.Snapshots
	Registry  *hub.Registry
	Hub       *hub.Hub
	Connector *feed.Connector
	Server    *server.Server
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Redis (optional: snapshot mirror + HTTP edge rate limiter) ---
	var (
		mirror  domain.SnapshotMirror
		limiter domain.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.Options{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		mirror = redis.NewSnapshotMirror(redisClient)
		limiter = redis.NewRateLimiter(redisClient)
	}

	// --- In-process state ---
	snapshots := cache.NewSnapshots()
	registry := hub.NewRegistry()
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	// --- WebSocket hub ---
	wsHub := hub.New(hub.Config{
		RateLimit:         cfg.Hub.RateLimit,
		RateWindow:        time.Duration(cfg.Hub.RateWindowSec) * time.Second,
		HeartbeatInterval: time.Duration(cfg.Hub.HeartbeatIntervalSec) * time.Second,
		HeartbeatTimeout:  time.Duration(cfg.Hub.HeartbeatTimeoutSec) * time.Second,
	}, registry, verifier, logger)
	closers = append(closers, wsHub.Close)

	// --- Feed connector ---
	dialer := binance.NewWSDialer(cfg.Binance.WSHost)
	rest := binance.NewRESTClient(cfg.Binance.RESTHost)

	connector := feed.NewConnector(feed.Config{
		ReconnectWait:  time.Duration(cfg.Binance.ReconnectWaitSec) * time.Second,
		StatsInterval:  time.Duration(cfg.Binance.StatsIntervalMin) * time.Minute,
		StatsRetryWait: time.Duration(cfg.Binance.StatsRetrySec) * time.Second,
	}, dialer, rest, snapshots, mirror, wsHub, logger)

	// --- HTTP server ---
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(logger, wsHub),
		Prices:    handler.NewPricesHandler(snapshots, logger),
		Broadcast: handler.NewBroadcastHandler(wsHub, logger),
	}

	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  time.Duration(cfg.Server.RateWindowSec) * time.Second,
	}, handlers, wsHub, limiter, logger)

	return &Dependencies{
		Snapshots: snapshots,
		Registry:  registry,
		Hub:       wsHub,
		Connector: connector,
		Server:    srv,
	}, cleanup, nil
}
