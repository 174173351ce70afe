package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/taskboard/taskboard/internal/auth"
	"github.com/taskboard/taskboard/internal/config"
	"github.com/taskboard/taskboard/internal/logging"
	"github.com/taskboard/taskboard/internal/monitor"
	"github.com/taskboard/taskboard/internal/ratelimit"
	"github.com/taskboard/taskboard/internal/server"
	"github.com/taskboard/taskboard/internal/storage"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	origins := flag.String("cors-origins", "", "comma-separated list of allowed CORS origins")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logging.New("taskboard", "info", "json").WithError(err).Error("configuration failed")
		os.Exit(1)
	}

	logger := logging.New("taskboard", cfg.Log.Level, cfg.Log.Format)

	store, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("storage initialization failed")
		os.Exit(1)
	}
	defer cleanup()

	codec := auth.NewCodec(cfg.Auth.JWTSecret, auth.WithTTL(cfg.Auth.TokenTTL))

	limiter, stopLimiter, err := buildLimiter(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("rate limiter initialization failed")
		os.Exit(1)
	}
	defer stopLimiter()

	mon := monitor.NewMonitor(cfg.Monitor.SlowThreshold, logger)
	sampler, err := monitor.NewSampler(cfg.Monitor.SampleInterval, cfg.Monitor.LagThreshold, mon, logger)
	if err != nil {
		logger.WithError(err).Error("resource sampler initialization failed")
		os.Exit(1)
	}
	sampler.Start()
	defer sampler.Stop()

	var allowed []string
	if *origins != "" {
		allowed = strings.Split(*origins, ",")
	}

	handler := server.New(server.Deps{
		Store:          store,
		Codec:          codec,
		Limiter:        limiter,
		Monitor:        mon,
		Sampler:        sampler,
		Metrics:        monitor.NewMetrics(),
		Logger:         logger,
		AllowedOrigins: allowed,
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{"addr": srv.Addr}).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	case sig := <-quit:
		logger.WithFields(map[string]interface{}{"signal": sig.String()}).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
		}
	}

	logger.Info("server stopped")
}

// buildStore selects Postgres when DATABASE_URL is set, the in-memory
// store otherwise. The returned cleanup is always safe to call.
func buildStore(cfg *config.Config, logger *logging.Logger) (storage.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("using in-memory store")
		return storage.NewMemoryStore(), func() {}, nil
	}

	pg, err := storage.NewPostgresStore(context.Background(), cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(); err != nil {
		pg.Close()
		return nil, nil, err
	}
	logger.Info("using postgres store")
	return pg, func() { pg.Close() }, nil
}

// buildLimiter selects the shared Redis limiter when RATE_LIMIT_REDIS_ADDR
// is set, the in-process sliding window otherwise.
func buildLimiter(cfg *config.Config, logger *logging.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, nil, err
		}
		logger.WithFields(map[string]interface{}{"addr": cfg.RateLimit.RedisAddr}).Info("using redis rate limiter")
		limiter := ratelimit.NewRedisLimiter(client, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
		return limiter, func() { _ = client.Close() }, nil
	}

	limiter := ratelimit.NewSlidingWindow(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, logger)
	if err := limiter.StartSweeper(cfg.RateLimit.SweepInterval); err != nil {
		return nil, nil, err
	}
	return limiter, limiter.StopSweeper, nil
}
