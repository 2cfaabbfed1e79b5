package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"apex-dashboard/internal/cache"
	"apex-dashboard/internal/config"
	"apex-dashboard/internal/f1data"
	"apex-dashboard/internal/handlers"
	"apex-dashboard/internal/httpserver"
	"apex-dashboard/internal/jolpica"
	"apex-dashboard/internal/metrics"
	"apex-dashboard/internal/realtime"
	"apex-dashboard/internal/views"
	"apex-dashboard/pkg/logging"
)

func main() {
	clearCache := flag.Bool("clear-cache", false, "remove every cached entry and exit")
	flag.Parse()

	if err := run(*clearCache); err != nil {
		log.Fatalf("dashboard exited with error: %v", err)
	}
}

func run(clearOnly bool) error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("cache_dir", cfg.CacheDir),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("cache_max_memory_items", cfg.MaxMemoryItems),
		zap.Int64("cache_max_disk_bytes", cfg.MaxDiskBytes),
		zap.Duration("cache_sweep_interval", cfg.SweepInterval),
		zap.String("jolpica_base_url", cfg.JolpicaBaseURL),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Cache -----
	store, err := cache.NewFromConfig(cfg.Cache(), redisClient, logger.Named("cache"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache close error", zap.Error(err))
		}
	}()

	if clearOnly {
		n := store.ClearAll(context.Background())
		logger.Info("cache cleared", zap.Int("removed", n))
		return nil
	}

	// ----- Metrics -----
	metrics.Register()

	dataCache := cache.NewLoggingCache(store)

	// ----- Jolpica client -----
	client, err := jolpica.NewClient(cfg.Jolpica(), logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// ----- Accessors, views, events -----
	hub := realtime.NewHub()
	service := f1data.NewService(dataCache, client, f1data.WithPublisher(hub))
	registry := views.Default(service)

	ctx, stopMaintenance := context.WithCancel(context.Background())
	defer stopMaintenance()

	go cache.RunMaintenance(ctx, dataCache, cfg.SweepInterval, func(removed int) {
		if removed > 0 {
			hub.Publish(ctx, realtime.EventCacheSwept, map[string]int{"removed": removed})
		}
	})

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Handlers{
		Views:  handlers.NewViewHandler(registry),
		Cache:  handlers.NewCacheHandler(dataCache, hub),
		Events: handlers.NewEventsHandler(hub),
	}, cfg.RequestTimeout)

	// ----- HTTP server -----
	// No WriteTimeout: /v1/events is long-lived and handlers are bounded
	// by the timeout middleware instead.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting dashboard",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return err
	case <-stop:
		logger.Info("shutdown signal received")
	}

	stopMaintenance()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
