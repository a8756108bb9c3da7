package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/staff-queue-scheduling/internal/config"
	"github.com/hackgods/staff-queue-scheduling/internal/db"
	"github.com/hackgods/staff-queue-scheduling/internal/events"
	"github.com/hackgods/staff-queue-scheduling/internal/logging"
	"github.com/hackgods/staff-queue-scheduling/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("event-relay", cfg.Env)
	slog.SetDefault(logger)

	brokers := events.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		logger.Warn("event relay disabled (no kafka brokers configured)")
		return
	}

	logger.Info("event-relay starting up",
		"interval", cfg.RelayInterval, "batch_size", cfg.RelayBatchSize, "topic", cfg.KafkaTopic)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.ConfigFromEnv("event-relay"))
	if err != nil {
		logger.Error("tracing setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.WithApplicationName("event-relay"), db.WithMaxConns(4))
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	readyCtx, cancelReady := context.WithTimeout(rootCtx, 5*time.Second)
	err = events.ReadyCheck(brokers)(readyCtx)
	cancelReady()
	if err != nil {
		// The writer retries on its own; keep going so a late broker does not need a restart.
		logger.Warn("kafka not reachable yet", "brokers", brokers, "err", err)
	}

	writer := events.NewWriter(brokers, cfg.KafkaTopic)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Warn("error closing kafka writer", "err", err)
		}
	}()

	relay := events.NewRelay(events.NewPgStore(pgPool), writer, cfg.RelayBatchSize, logger)
	relay.Run(rootCtx, cfg.RelayInterval)

	logger.Info("shutdown signal received, stopping event relay")
}
