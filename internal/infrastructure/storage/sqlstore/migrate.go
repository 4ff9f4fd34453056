package sqlstore

import (
	"context"
	"fmt"

	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

// Migrate creates one table per registered type.
// MySQL commits DDL implicitly, so statements are not wrapped in a transaction.
func Migrate(ctx context.Context, db *DB, reg *metadata.Registry) error {
	stmts := db.Dialect.Schema(reg)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info(ctx, "schema migrated", "dialect", db.Dialect.Name, "statements", len(stmts))
	return nil
}
