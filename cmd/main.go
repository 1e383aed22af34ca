package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	fiberRecover "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"

	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/handler"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/middleware"
	"movie-recommender-web/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional: it backs the rate limiter and the redis list store.
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err = middleware.NewRedisClient(connectCtx, cfg.Redis)
		cancel()
		if err != nil {
			if cfg.Store.Driver == config.StoreRedis {
				slog.Error("failed to connect to Redis", "error", err)
				os.Exit(1)
			}
			slog.Warn("Redis unavailable, rate limiting disabled", "error", err)
			rdb = nil
		}
	}

	store, err := localstore.Open(ctx, cfg.Store, rdb)
	if err != nil {
		slog.Error("failed to open list store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	slog.Info("list store ready", "driver", cfg.Store.Driver)
	lists := localstore.NewLists(store)

	manager := workspace.NewManager(cfg.WorkspaceTTL, func(id string) (*workspace.Workspace, error) {
		return workspace.New(id, workspace.Options{
			BackendURL:     cfg.BackendURL,
			BackendTimeout: cfg.BackendTimeout,
			UI:             cfg.UI,
			Lists:          lists,
		})
	})
	go manager.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "movie-recommender-web",
		ServerHeader: "movie-recommender-web",
	})

	// Global middleware
	app.Use(fiberRecover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	rateLimiter := middleware.NewRateLimiter(rdb, cfg.RateLimit)
	app.Use(rateLimiter.Handler())
	app.Use(middleware.Session(manager, cfg.CookieSecure, cfg.WorkspaceTTL))

	handler.Register(app)

	go func() {
		slog.Info("movie-recommender-web starting", "port", cfg.Port, "backend", cfg.BackendURL)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down movie-recommender-web...")

	// Shutdown HTTP server first (stop accepting new requests)
	if err := app.Shutdown(); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}
	slog.Info("HTTP server stopped")

	manager.Close()

	if err := store.Close(); err != nil {
		slog.Error("error closing list store", "error", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("error closing Redis connection", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	slog.Info("movie-recommender-web shutdown complete")
}
