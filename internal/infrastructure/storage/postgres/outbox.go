package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	appctx "tombstone/internal/core/context"
	"tombstone/internal/core/id"
	"tombstone/internal/domain/lifecycle"
	"tombstone/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of failed deliveries after which a message
// is marked failed and becomes eligible for the DLQ.
const MaxOutboxRetries = 5

// Event types written for lifecycle transitions.
const (
	EventRecordDestroyed = "record.destroyed"
	EventRecordRestored  = "record.restored"
	EventRecordPurged    = "record.purged"
	EventRecordDeleted   = "record.deleted"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// LifecycleEvent is the payload of lifecycle outbox messages.
type LifecycleEvent struct {
	Type    string     `json:"type"`
	ID      id.ID      `json:"id"`
	Instant *time.Time `json:"instant,omitempty"`
	Root    bool       `json:"root"`
	Actor   string     `json:"actor,omitempty"`
	TraceID string     `json:"traceId,omitempty"`
}

var eventTypes = map[lifecycle.Operation]string{
	lifecycle.OpDestroy: EventRecordDestroyed,
	lifecycle.OpRestore: EventRecordRestored,
	lifecycle.OpPurge:   EventRecordPurged,
	lifecycle.OpDelete:  EventRecordDeleted,
}

// OutboxPublisher writes lifecycle events to sys_outbox in the transaction
// that performs the transition. Creates and updates are not published.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ lifecycle.Observer = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Transitioned implements lifecycle.Observer.
func (p *OutboxPublisher) Transitioned(ctx context.Context, t lifecycle.Transition) error {
	eventType, ok := eventTypes[t.Operation]
	if !ok {
		return nil
	}

	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(LifecycleEvent{
		Type:    t.Record.Type,
		ID:      t.Record.ID,
		Instant: t.Instant,
		Root:    t.Root,
		Actor:   appctx.Actor(ctx),
		TraceID: appctx.TraceID(ctx),
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), t.Record.Type, t.Record.ID, eventType, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers outbox messages.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay reads pending messages and hands them to a handler.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	batchSize int
	handler   OutboxHandler
	log       *logger.Logger
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *Pool, batchSize int, handler OutboxHandler, log *logger.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = logger.Default()
	}
	return &OutboxRelay{
		pool:      pool.Pool,
		batchSize: batchSize,
		handler:   handler,
		log:       log.WithComponent("outbox_relay"),
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			r.log.WithContext(ctx).Errorw("outbox batch failed", "error", err)
		} else if n > 0 {
			r.log.WithContext(ctx).Debugw("outbox batch delivered", "count", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch fetches and processes pending messages.
// Returns number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var messages []*OutboxMessage
	err = pgxscan.Select(ctx, tx, &messages, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	delivered := 0
	for _, msg := range messages {
		if err := r.handler.Handle(ctx, msg); err != nil {
			r.log.WithContext(ctx).Warnw("outbox delivery failed",
				"message_id", msg.ID.String(),
				"event_type", msg.EventType,
				"retry", msg.RetryCount+1,
				"error", err,
			)
			nextRetry := time.Now().UTC().Add(time.Duration(msg.RetryCount+1) * time.Minute)
			if _, err := tx.Exec(ctx, `
				UPDATE sys_outbox
				SET retry_count = retry_count + 1,
				    last_error = $1,
				    next_retry_at = $2,
				    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
				WHERE id = $5
			`, err.Error(), nextRetry, MaxOutboxRetries, OutboxStatusFailed, msg.ID); err != nil {
				return delivered, fmt.Errorf("update failed message: %w", err)
			}
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
		`, OutboxStatusPublished, time.Now().UTC(), msg.ID); err != nil {
			return delivered, fmt.Errorf("mark message published: %w", err)
		}
		delivered++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return delivered, nil
}

// MoveToDLQ moves messages that exhausted their retries to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT *, NOW() AS failed_at FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}

// DLQMover is implemented by OutboxRelay.
type DLQMover interface {
	MoveToDLQ(ctx context.Context) (int64, error)
}

var _ DLQMover = (*OutboxRelay)(nil)

// SweepDLQ calls MoveToDLQ every interval until ctx is done.
// Failures are logged and the sweep continues.
func SweepDLQ(ctx context.Context, mover DLQMover, interval time.Duration, log *logger.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := mover.MoveToDLQ(ctx)
			if err != nil {
				log.WithContext(ctx).Errorw("failed to move outbox messages to DLQ", "error", err)
			} else if n > 0 {
				log.WithContext(ctx).Warnw("moved outbox messages to DLQ", "count", n)
			}
		}
	}
}
