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

// Destroy marks rec destroyed and cascades to its dependents.
//
// Destroying an already destroyed record is a no-op. For a type without
// destroyed_at the record and its dependents are removed from storage.
// Failures roll back the whole cascade and are reported in Result.
func (s *Service) Destroy(ctx context.Context, rec *entity.Record, opts ...DestroyOption) Result {
	var o destroyOptions
	for _, opt := range opts {
		opt(&o)
	}
	at := s.clock.Now()
	if o.at != nil {
		at = *o.at
	}
	at = instant.Normalize(at)

	u, err := s.run(ctx, OpDestroy, rec, func(ctx context.Context, u *unit) error {
		return u.destroy(ctx, rec, at, true)
	})
	if err == nil && len(u.res.Destroyed) > 0 {
		u.res.Instant = &at
	}
	return u.result(err)
}

// DestroyStrict is Destroy that returns the failure as an error.
func (s *Service) DestroyStrict(ctx context.Context, rec *entity.Record, opts ...DestroyOption) error {
	return s.Destroy(ctx, rec, opts...).Err
}

func (u *unit) destroy(ctx context.Context, rec *entity.Record, at time.Time, root bool) error {
	def, err := u.s.lookup(rec.Type)
	if err != nil {
		return err
	}
	if !def.Lifecycle {
		return u.purge(ctx, rec, def, root)
	}

	ref := rec.Ref()
	if u.busy[ref] || rec.Destroyed() {
		return nil
	}
	u.busy[ref] = true
	u.snapshot(rec)

	if err := u.s.runHook(ctx, domain.BeforeDestroy, rec); err != nil {
		return err
	}

	before, after := splitRelations(def)
	if err := u.destroyRelations(ctx, rec, before, at, false); err != nil {
		return err
	}

	rec.DestroyedAt = &at
	if err := u.s.repo.SetDestroyedAt(ctx, def, rec.ID, &at); err != nil {
		return fmt.Errorf("destroy %s: %w", ref, err)
	}
	if err := u.adjustCounters(ctx, rec, -1); err != nil {
		return err
	}

	if err := u.destroyRelations(ctx, rec, after, at, false); err != nil {
		return err
	}

	if err := u.s.runHook(ctx, domain.AfterDestroy, rec); err != nil {
		return err
	}
	if err := u.notify(ctx, OpDestroy, rec, &at, root); err != nil {
		return err
	}
	u.afterCommit(ctx, domain.AfterDestroyCommit, rec)
	u.res.Destroyed = append(u.res.Destroyed, ref)

	u.s.log.WithContext(ctx).Debugw("record destroyed", "record", ref.String(), "at", at)
	return nil
}

// purge removes rec from storage, firing destroy hooks, after hard-deleting
// every non-none dependent.
func (u *unit) purge(ctx context.Context, rec *entity.Record, def *metadata.TypeDef, root bool) error {
	ref := rec.Ref()
	// an instance that was already removed (or never stored) has nothing to purge
	if u.busy[ref] || !rec.Persisted() {
		return nil
	}
	u.busy[ref] = true
	u.snapshot(rec)

	if err := u.s.runHook(ctx, domain.BeforeDestroy, rec); err != nil {
		return err
	}

	before, after := splitRelations(def)
	if err := u.destroyRelations(ctx, rec, before, time.Time{}, true); err != nil {
		return err
	}

	wasActive := !rec.Destroyed()
	if err := u.s.repo.Delete(ctx, def, rec.ID); err != nil {
		return fmt.Errorf("hard delete %s: %w", ref, err)
	}
	rec.SetPersisted(false)
	if wasActive {
		if err := u.adjustCounters(ctx, rec, -1); err != nil {
			return err
		}
	}

	if err := u.destroyRelations(ctx, rec, after, time.Time{}, true); err != nil {
		return err
	}

	if err := u.s.runHook(ctx, domain.AfterDestroy, rec); err != nil {
		return err
	}
	if err := u.notify(ctx, OpPurge, rec, nil, root); err != nil {
		return err
	}
	u.afterCommit(ctx, domain.AfterDestroyCommit, rec)
	u.res.Purged = append(u.res.Purged, ref)

	u.s.log.WithContext(ctx).Debugw("record hard deleted", "record", ref.String())
	return nil
}

func (u *unit) destroyRelations(ctx context.Context, rec *entity.Record, rels []metadata.RelationDef, at time.Time, purge bool) error {
	for _, rel := range rels {
		act, def, err := u.s.plan(rec, rel, purge)
		if err != nil {
			return err
		}

		switch act {
		case metadata.ActionCascade:
			members, err := u.members(ctx, rec, rel, def, scope.Default())
			if err != nil {
				return err
			}
			for _, m := range members {
				if err := u.destroy(ctx, m, at, false); err != nil {
					return err
				}
			}
		case metadata.ActionHardDelete:
			members, err := u.members(ctx, rec, rel, def, scope.Unscoped())
			if err != nil {
				return err
			}
			for _, m := range members {
				if err := u.purge(ctx, m, def, false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Delete removes rec from storage unconditionally. No hooks run, nothing
// cascades and counter caches are left alone. Afterwards rec is not persisted.
func (s *Service) Delete(ctx context.Context, rec *entity.Record) error {
	def, err := s.lookup(rec.Type)
	if err != nil {
		return err
	}

	_, err = s.run(ctx, OpDelete, rec, func(ctx context.Context, u *unit) error {
		u.snapshot(rec)
		if err := s.repo.Delete(ctx, def, rec.ID); err != nil {
			return fmt.Errorf("delete %s: %w", rec.Ref(), err)
		}
		rec.SetPersisted(false)
		return u.notify(ctx, OpDelete, rec, nil, true)
	})
	if err != nil && !apperror.IsAppError(err) {
		return apperror.NewDatabase("delete", err)
	}
	return err
}
