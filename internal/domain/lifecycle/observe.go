package lifecycle

import (
	"context"
	"time"

	"tombstone/internal/core/entity"
)

// Transition describes one record changing state inside a transaction.
type Transition struct {
	Operation Operation
	Record    *entity.Record
	// Instant is destroyed_at after a destroy, the matched instant after a restore.
	Instant *time.Time
	// Root is true for the record the caller passed in.
	Root bool
}

// Observer is notified of every transition while the transaction is still
// open. Audit trails and outboxes write through it so their rows commit
// atomically with the transition. A returned error aborts the operation.
type Observer interface {
	Transitioned(ctx context.Context, t Transition) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition) error

// Transitioned implements Observer.
func (f ObserverFunc) Transitioned(ctx context.Context, t Transition) error { return f(ctx, t) }

// Metrics receives counters for committed and rolled back operations.
type Metrics interface {
	ObserveTransition(typeName string, op Operation)
	ObserveCascade(op Operation, size int)
	ObserveRollback(op Operation)
}

type nopMetrics struct{}

func (nopMetrics) ObserveTransition(string, Operation) {}
func (nopMetrics) ObserveCascade(Operation, int)       {}
func (nopMetrics) ObserveRollback(Operation)           {}
