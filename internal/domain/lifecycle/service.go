// Package lifecycle implements the soft-delete lifecycle and cascade engine.
//
// A Service destroys, restores and hard-deletes records of the types declared
// in a metadata.Registry. Each public operation runs in one transaction of the
// configured tx.Manager: the root transition, every cascaded transition,
// counter cache writes and hard deletions commit or roll back together, and
// on rollback every in-memory record touched by the call is returned to its
// pre-call state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/instant"
	"tombstone/internal/core/tx"
	"tombstone/internal/domain"
	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

// Service is the lifecycle engine.
type Service struct {
	registry  *metadata.Registry
	repo      domain.RecordRepository
	txm       tx.Manager
	hooks     *domain.HookRegistry
	clock     instant.Clock
	observers []Observer
	metrics   Metrics
	log       *logger.Logger
	tracer    trace.Tracer
}

// Config configures the service.
type Config struct {
	Registry  *metadata.Registry
	Repo      domain.RecordRepository
	TxManager tx.Manager

	// Optional
	Hooks     *domain.HookRegistry
	Clock     instant.Clock
	Observers []Observer
	Metrics   Metrics
	Logger    *logger.Logger
}

// NewService creates the engine. The registry must be finalized.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errors.New("lifecycle: registry is required")
	case cfg.Repo == nil:
		return nil, errors.New("lifecycle: repository is required")
	case cfg.TxManager == nil:
		return nil, errors.New("lifecycle: tx manager is required")
	}
	if !cfg.Registry.Finalized() {
		if err := cfg.Registry.Finalize(); err != nil {
			return nil, fmt.Errorf("lifecycle: registry: %w", err)
		}
	}

	s := &Service{
		registry:  cfg.Registry,
		repo:      cfg.Repo,
		txm:       cfg.TxManager,
		hooks:     cfg.Hooks,
		clock:     cfg.Clock,
		observers: cfg.Observers,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		tracer:    otel.Tracer("tombstone/lifecycle"),
	}
	if s.hooks == nil {
		s.hooks = domain.NewHookRegistry()
	}
	if s.clock == nil {
		s.clock = instant.System
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.WithComponent("lifecycle")
	return s, nil
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry {
	return s.hooks
}

// Registry returns the type registry.
func (s *Service) Registry() *metadata.Registry {
	return s.registry
}

// run executes fn in one transaction and rolls in-memory state back on failure.
func (s *Service) run(ctx context.Context, op Operation, root *entity.Record, fn func(ctx context.Context, u *unit) error) (*unit, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle."+string(op), trace.WithAttributes(
		attribute.String("record.type", root.Type),
		attribute.String("record.id", root.ID.String()),
	))
	defer span.End()

	u := newUnit(s, op)
	u.track(root)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, u)
	})
	if err != nil {
		u.rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveRollback(op)
		s.log.WithContext(ctx).Warnw("lifecycle operation rolled back",
			"operation", op,
			"record", root.Ref().String(),
			"error", err,
		)
		return u, err
	}

	u.runPending(ctx)
	u.observe()
	span.SetAttributes(
		attribute.Int("cascade.destroyed", len(u.res.Destroyed)),
		attribute.Int("cascade.restored", len(u.res.Restored)),
		attribute.Int("cascade.purged", len(u.res.Purged)),
	)
	return u, nil
}

func (s *Service) runHook(ctx context.Context, event domain.HookEvent, rec *entity.Record) error {
	if err := s.hooks.Run(ctx, event, rec); err != nil {
		if apperror.IsCallbackAborted(err) {
			return err
		}
		return apperror.NewCallbackAborted(string(event), err).
			WithDetail("record", rec.Ref().String())
	}
	return nil
}

func (s *Service) lookup(typeName string) (*metadata.TypeDef, error) {
	return s.registry.Lookup(typeName)
}
