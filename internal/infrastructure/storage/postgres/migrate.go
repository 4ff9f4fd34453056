package postgres

import (
	"context"
	"fmt"

	"tombstone/internal/infrastructure/storage/sqlbuild"
	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

// systemDDL creates the tables used by the audit trail and the outbox.
var systemDDL = []string{
	`CREATE TABLE IF NOT EXISTS sys_audit (
		id UUID PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id UUID NOT NULL,
		action TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		trace_id TEXT NOT NULL DEFAULT '',
		root BOOLEAN NOT NULL DEFAULT FALSE,
		instant TIMESTAMPTZ NULL,
		changes JSONB NULL,
		changes_compressed BYTEA NULL,
		compression_algo TEXT NOT NULL DEFAULT 'none',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_audit_entity ON sys_audit (entity_type, entity_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS sys_outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT NULL,
		next_retry_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		published_at TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_pending ON sys_outbox (created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS sys_outbox_dlq (
		LIKE sys_outbox,
		failed_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the system tables and one table per registered type.
func Migrate(ctx context.Context, txm *TxManager, reg *metadata.Registry) error {
	stmts := append(append([]string(nil), systemDDL...), sqlbuild.Postgres.Schema(reg)...)

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for _, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		logger.Info(ctx, "schema migrated", "dialect", sqlbuild.Postgres.Name, "statements", len(stmts))
		return nil
	})
}
