package lifecycle

import (
	"context"
	"fmt"
	"time"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/instant"
	"tombstone/internal/domain"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

// Restore clears destroyed_at on rec and restores the cascade dependents
// destroyed together with it.
//
// The correlation instant is rec's in-memory destroyed_at captured before it
// is cleared, or the instant given with WithCorrelation. A dependent is
// restored only when its destroyed_at equals that instant exactly. Restore
// never runs validation and fires restore hooks only.
func (s *Service) Restore(ctx context.Context, rec *entity.Record, opts ...RestoreOption) Result {
	o := restoreOptions{recursive: true}
	for _, opt := range opts {
		opt(&o)
	}

	var prior *time.Time
	u, err := s.run(ctx, OpRestore, rec, func(ctx context.Context, u *unit) error {
		var err error
		prior, err = u.restore(ctx, rec, o.correlation, o.recursive, true)
		return err
	})
	if err == nil {
		u.res.Instant = prior
	}
	return u.result(err)
}

// RestoreStrict is Restore that returns the failure as an error.
func (s *Service) RestoreStrict(ctx context.Context, rec *entity.Record, opts ...RestoreOption) error {
	return s.Restore(ctx, rec, opts...).Err
}

func (u *unit) restore(ctx context.Context, rec *entity.Record, correlation *time.Time, recursive, root bool) (*time.Time, error) {
	def, err := u.s.lookup(rec.Type)
	if err != nil {
		return nil, err
	}
	if !def.Lifecycle {
		return nil, apperror.NewLifecycleUnsupported(def.Name, "restore")
	}

	ref := rec.Ref()
	if u.busy[ref] {
		return nil, nil
	}
	u.busy[ref] = true
	u.snapshot(rec)

	prior := instant.NormalizePtr(rec.DestroyedAt)
	if correlation != nil {
		prior = instant.NormalizePtr(correlation)
	}

	if err := u.s.runHook(ctx, domain.BeforeRestore, rec); err != nil {
		return nil, err
	}

	wasDestroyed := rec.Destroyed()
	rec.DestroyedAt = nil
	if err := u.s.repo.SetDestroyedAt(ctx, def, rec.ID, nil); err != nil {
		return nil, fmt.Errorf("restore %s: %w", ref, err)
	}
	if wasDestroyed {
		if err := u.adjustCounters(ctx, rec, 1); err != nil {
			return nil, err
		}
	}

	if recursive && prior != nil {
		if err := u.restoreRelations(ctx, rec, def, *prior); err != nil {
			return nil, err
		}
	}

	if err := u.s.runHook(ctx, domain.AfterRestore, rec); err != nil {
		return nil, err
	}
	if err := u.notify(ctx, OpRestore, rec, prior, root); err != nil {
		return nil, err
	}
	u.afterCommit(ctx, domain.AfterRestoreCommit, rec)
	u.res.Restored = append(u.res.Restored, ref)

	u.s.log.WithContext(ctx).Debugw("record restored", "record", ref.String(), "correlation", prior)
	return prior, nil
}

func (u *unit) restoreRelations(ctx context.Context, rec *entity.Record, def *metadata.TypeDef, prior time.Time) error {
	before, after := splitRelations(def)
	for _, rel := range append(before, after...) {
		act, target, err := u.s.plan(rec, rel, false)
		if err != nil {
			return err
		}
		if act != metadata.ActionCascade {
			continue
		}
		members, err := u.members(ctx, rec, rel, target, scope.DestroyedAt(prior))
		if err != nil {
			return err
		}
		for _, m := range members {
			if !instant.Equal(m.DestroyedAt, &prior) {
				continue
			}
			if _, err := u.restore(ctx, m, nil, true, false); err != nil {
				return err
			}
		}
	}
	return nil
}
