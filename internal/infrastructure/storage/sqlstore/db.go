// Package sqlstore implements the record store on database/sql through sqlx.
// It serves SQLite (modernc, no cgo) and MySQL; PostgreSQL has its own pgx
// adapter.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tombstone/internal/infrastructure/storage/sqlbuild"
	"tombstone/pkg/logger"
)

// Config holds connection settings.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns conservative pool sizes for the driver.
func DefaultConfig(driver, dsn string) Config {
	cfg := Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
	if driver == "sqlite" || driver == "sqlite3" {
		// one writer; also keeps ":memory:" databases on a single connection
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// DB wraps a sqlx handle with the dialect used to render statements.
type DB struct {
	*sqlx.DB
	Dialect sqlbuild.Dialect
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, ok := sqlbuild.ByName(cfg.Driver)
	if !ok || dialect.Name == sqlbuild.Postgres.Name {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	driver := cfg.Driver
	if dialect.Name == sqlbuild.SQLite.Name {
		driver = "sqlite"
	}
	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	if dialect.Name == sqlbuild.SQLite.Name {
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
			}
		}
	}

	logger.Info(ctx, "database connected", "driver", dialect.Name, "max_open_conns", cfg.MaxOpenConns)
	return &DB{DB: db, Dialect: dialect}, nil
}

// Wrap adapts an existing handle, e.g. one opened by sqlmock.
func Wrap(db *sqlx.DB, dialect sqlbuild.Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}
