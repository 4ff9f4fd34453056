package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tombstone/internal/config"
	"tombstone/internal/domain/lifecycle"
	"tombstone/internal/infrastructure/metrics"
	"tombstone/internal/infrastructure/storage/postgres"
	"tombstone/internal/infrastructure/storage/sqlstore"
	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

// app holds the storage and engine built from the loaded config.
type app struct {
	registry *metadata.Registry
	service  *lifecycle.Service
	metrics  *prometheus.Registry

	// Exactly one of pool or db is set.
	pool  *postgres.Pool
	pgTxm *postgres.TxManager
	db    *sqlstore.DB
}

// openApp connects to the configured driver and builds the lifecycle service.
func openApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	a := &app{registry: reg, metrics: prometheus.NewRegistry()}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcCfg := lifecycle.Config{
		Registry: reg,
		Metrics:  metrics.New(a.metrics),
		Logger:   log,
	}

	switch cfg.Database.Driver {
	case "postgres":
		poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = int32(cfg.Database.MaxConns)
		}
		if cfg.Database.MinConns > 0 {
			poolCfg.MinConns = int32(cfg.Database.MinConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		}
		a.pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		a.pgTxm = postgres.NewTxManager(a.pool).WithStatementTimeout(cfg.Database.StatementTimeout)
		svcCfg.Repo = postgres.NewRecordRepo(a.pgTxm)
		svcCfg.TxManager = a.pgTxm

		if cfg.Audit.Enabled {
			trail, err := postgres.NewAuditTrail(a.pgTxm, cfg.Audit.CompressThreshold)
			if err != nil {
				a.Close()
				return nil, err
			}
			svcCfg.Observers = append(svcCfg.Observers, trail)
		}
		if cfg.Outbox.Enabled {
			svcCfg.Observers = append(svcCfg.Observers, postgres.NewOutboxPublisher(a.pgTxm))
		}

	default:
		dbCfg := sqlstore.DefaultConfig(cfg.Database.Driver, cfg.Database.DSN)
		if cfg.Database.MaxConns > 0 && cfg.Database.Driver != "sqlite" {
			dbCfg.MaxOpenConns = cfg.Database.MaxConns
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		}
		a.db, err = sqlstore.Open(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		txm := sqlstore.NewTxManager(a.db)
		svcCfg.Repo = sqlstore.NewRecordRepo(txm)
		svcCfg.TxManager = txm
		if cfg.Audit.Enabled || cfg.Outbox.Enabled {
			log.Warnw("audit and outbox require the postgres driver, ignoring", "driver", cfg.Database.Driver)
		}
	}

	a.service, err = lifecycle.NewService(svcCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init lifecycle: %w", err)
	}
	return a, nil
}

// Migrate creates the tables declared by the schema.
func (a *app) Migrate(ctx context.Context) error {
	if a.pool != nil {
		return postgres.Migrate(ctx, a.pgTxm, a.registry)
	}
	return sqlstore.Migrate(ctx, a.db, a.registry)
}

// Ping checks the database connection.
func (a *app) Ping(ctx context.Context) error {
	if a.pool != nil {
		return a.pool.Ping(ctx)
	}
	return a.db.PingContext(ctx)
}

// Close releases the database connections.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
