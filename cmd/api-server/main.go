package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/staff-queue-scheduling/internal/api"
	"github.com/hackgods/staff-queue-scheduling/internal/config"
	"github.com/hackgods/staff-queue-scheduling/internal/db"
	"github.com/hackgods/staff-queue-scheduling/internal/logging"
	redisclient "github.com/hackgods/staff-queue-scheduling/internal/redis"
	"github.com/hackgods/staff-queue-scheduling/internal/scheduling"
	"github.com/hackgods/staff-queue-scheduling/internal/telemetry"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("api-server", cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api-server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	logger.Info("api-server starting up",
		"http_port", cfg.HTTPPort, "lock_backend", cfg.LockBackend, "timezone", cfg.Location.String())

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.ConfigFromEnv("api-server"))
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown failed", "err", err)
		}
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.WithApplicationName("api-server"), db.WithLockTimeout(cfg.LockWait))
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	if cfg.AutoMigrate {
		if err := db.Migrate(rootCtx, pgPool); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	checks := []api.DependencyCheck{{Name: "postgres", Required: true, Ping: pgPool.Ping}}

	var locker redisclient.Locker
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "err", err)
			}
		}()
		logger.Info("connected to Redis", "addr", cfg.RedisAddr)

		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		checks = append(checks, api.DependencyCheck{
			Name: "redis",
			// Reorders fail while Redis is down but assignment keeps working.
			Ping: func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) },
		})
	default:
		logger.Warn("using in-process queue locks; run a single api-server instance")
		locker = redisclient.NewLocalLocker(cfg.LockWait)
	}

	repo := scheduling.NewPgRepository(pgPool)
	svc := scheduling.NewService(repo, locker, cfg.Location, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Health:   api.NewHealthHandler(cfg.Env, version, checks...),
		Logger:   logger,
		Location: cfg.Location,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
