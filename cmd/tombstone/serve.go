package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	v1 "tombstone/internal/infrastructure/http/v1"
	"tombstone/internal/infrastructure/storage/postgres"
)

const (
	poolStatsInterval = time.Minute
	dlqInterval       = time.Hour
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. With the postgres driver and outbox.enabled the
outbox relay and the hourly dead-letter sweep run in the same process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return withApp(ctx, func(a *app) error { return serve(ctx, a) })
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "create missing tables before serving")
}

func serve(ctx context.Context, a *app) error {
	if migrateOnStart {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	router := v1.NewRouter(v1.RouterConfig{
		Service:  a.service,
		Logger:   log,
		Ping:     a.Ping,
		Gatherer: a.metrics,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("server starting", "addr", cfg.HTTP.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.pool != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.pool.LogStats(gctx)
				}
			}
		})

		if cfg.Outbox.Enabled {
			relay := postgres.NewOutboxRelay(a.pool, cfg.Outbox.BatchSize, outboxHandler(), log)
			g.Go(func() error { return relay.Run(gctx, cfg.Outbox.PollInterval) })
			g.Go(func() error { return postgres.SweepDLQ(gctx, relay, dlqInterval, log) })
		}
	}

	err := g.Wait()
	log.Info("server stopped")
	return err
}

// outboxHandler delivers to the configured webhook, or logs events when none is set.
func outboxHandler() postgres.OutboxHandler {
	if cfg.Outbox.Webhook == "" {
		return postgres.LogHandler(log)
	}
	return postgres.WebhookHandler(&http.Client{Timeout: 10 * time.Second}, cfg.Outbox.Webhook)
}
