// Package domain defines the store contracts the lifecycle engine consumes.
package domain

import (
	"context"
	"time"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain/filter"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

// --- Query & Pagination ---

// RecordQuery selects rows of one type.
// Scope is always applied; its zero value hides destroyed records.
type RecordQuery struct {
	Scope scope.Scope

	// IDs filters by specific IDs
	IDs []id.ID

	// Match holds equality predicates produced by relation traversal
	// (foreign key, polymorphic type column).
	Match map[string]any

	// Filters are user predicates, AND-composed with Scope and Match.
	Filters []filter.Item

	// OrderBy specifies sorting (e.g., "title", "-destroyed_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultLimit caps list endpoints when the caller does not.
const DefaultLimit = 50

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Repository Interfaces ---

// RecordRepository reads and writes rows of any registered type.
// All methods join the transaction carried by ctx, if any.
type RecordRepository interface {
	// Insert writes a new row including destroyed_at.
	Insert(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error

	// Update writes data columns. destroyed_at is never touched.
	Update(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error

	// SetDestroyedAt writes the lifecycle column only.
	SetDestroyedAt(ctx context.Context, def *metadata.TypeDef, recID id.ID, at *time.Time) error

	// Delete physically removes the row. Missing rows are not an error.
	Delete(ctx context.Context, def *metadata.TypeDef, recID id.ID) error

	// AdjustCounter adds delta to an integer column, clamped at zero.
	AdjustCounter(ctx context.Context, def *metadata.TypeDef, recID id.ID, column string, delta int) error

	// Get returns one row visible under sc, or a NOT_FOUND AppError.
	Get(ctx context.Context, def *metadata.TypeDef, recID id.ID, sc scope.Scope) (*entity.Record, error)

	// List returns rows matching q.
	List(ctx context.Context, def *metadata.TypeDef, q RecordQuery) ([]*entity.Record, error)

	// Count returns the number of rows matching q, ignoring pagination.
	Count(ctx context.Context, def *metadata.TypeDef, q RecordQuery) (int64, error)
}
