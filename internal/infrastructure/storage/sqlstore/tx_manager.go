package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tombstone/internal/core/tx"
	"tombstone/pkg/logger"
)

var tracer = otel.Tracer("tombstone/sqlstore")

var _ tx.ReadOnlyManager = (*TxManager)(nil)

type txKey struct{}

// TxManager implements tx.ReadOnlyManager on database/sql.
// Nested calls join the outer transaction.
type TxManager struct {
	db *DB
}

// NewTxManager creates a transaction manager.
func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTransaction implements tx.Manager.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, nil, fn)
}

// ReadOnly implements tx.ReadOnlyManager. SQLite ignores the flag.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, &sql.TxOptions{ReadOnly: m.db.Dialect.Name == "mysql"}, fn)
}

func (m *TxManager) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "sqlstore.Transaction")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", m.db.Dialect.Name))

	sqlTx, err := m.db.BeginTxx(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin")
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx, hooks := tx.WithCommitHooks(ctx)
	txCtx = context.WithValue(txCtx, txKey{}, sqlTx)

	if err := fn(txCtx); err != nil {
		hooks.Discard()
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		hooks.Discard()
		span.RecordError(err)
		return fmt.Errorf("commit transaction: %w", err)
	}

	if err := hooks.Run(ctx); err != nil {
		logger.Warn(ctx, "after commit hooks failed", "error", err)
	}
	return nil
}

// GetTx returns the transaction carried by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *sqlx.Tx {
	if t, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.db.DB
}
