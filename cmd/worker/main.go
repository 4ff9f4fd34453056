// Package main is the entry point for the tombstone outbox worker.
// It delivers lifecycle events written by the postgres driver and moves
// messages that exhausted their retries to the dead letter table.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tombstone/internal/config"
	"tombstone/internal/infrastructure/storage/postgres"
	"tombstone/pkg/logger"
)

const dlqInterval = time.Hour

func main() {
	cfg, err := config.Load(config.New(), os.Getenv("TOMBSTONE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != "postgres" {
		log.Fatalw("outbox worker requires the postgres driver", "driver", cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting tombstone outbox worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.ApplicationName = "tombstone-worker"
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := run(ctx, cfg, pool, log.WithComponent("worker")); err != nil {
		log.Errorw("worker failed", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, pool *postgres.Pool, log *logger.Logger) error {
	var handler postgres.OutboxHandler
	if cfg.Outbox.Webhook != "" {
		handler = postgres.WebhookHandler(&http.Client{Timeout: 10 * time.Second}, cfg.Outbox.Webhook)
		log.Infow("delivering to webhook", "url", cfg.Outbox.Webhook)
	} else {
		handler = postgres.LogHandler(log)
	}
	relay := postgres.NewOutboxRelay(pool, cfg.Outbox.BatchSize, handler, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx, cfg.Outbox.PollInterval) })
	g.Go(func() error { return postgres.SweepDLQ(gctx, relay, dlqInterval, log) })
	g.Go(func() error {
		ticker := time.NewTicker(dlqInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				pool.LogStats(gctx)
			}
		}
	})
	return g.Wait()
}
