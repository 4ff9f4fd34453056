package lifecycle

import (
	"context"
	"fmt"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/instant"
	"tombstone/internal/domain"
	"tombstone/internal/metadata"
)

// Create validates and inserts rec.
//
// A record inserted with destroyed_at already set is stored but not marked
// persisted, and it does not count towards counter caches.
func (s *Service) Create(ctx context.Context, rec *entity.Record) error {
	_, err := s.run(ctx, OpCreate, rec, func(ctx context.Context, u *unit) error {
		return u.create(ctx, rec, true)
	})
	return err
}

// Save creates rec if it was never persisted, otherwise validates and updates
// its data columns. destroyed_at is never written by Save.
func (s *Service) Save(ctx context.Context, rec *entity.Record) error {
	op := OpUpdate
	if !rec.Persisted() {
		op = OpCreate
	}
	_, err := s.run(ctx, op, rec, func(ctx context.Context, u *unit) error {
		return u.save(ctx, rec, true)
	})
	return err
}

// SaveWithMembers saves owner and the members of one of its has_many or
// has_one relations in one transaction, pointing each member at owner.
//
// Members staged with MarkForDeferredDestruction are destroyed at their
// staged instant: persisted members through a regular destroy, new members
// by inserting them already destroyed. Members staged with a zero instant
// share the service clock's reading taken when the save starts.
func (s *Service) SaveWithMembers(ctx context.Context, owner *entity.Record, relation string, members ...*entity.Record) error {
	def, err := s.lookup(owner.Type)
	if err != nil {
		return err
	}
	rel, ok := def.Relation(relation)
	if !ok || rel.Kind == metadata.BelongsTo {
		return apperror.NewValidation(fmt.Sprintf("%s has no has_many/has_one relation %q", owner.Type, relation))
	}

	now := instant.Normalize(s.clock.Now())
	_, err = s.run(ctx, OpUpdate, owner, func(ctx context.Context, u *unit) error {
		if err := u.save(ctx, owner, true); err != nil {
			return err
		}
		for _, m := range members {
			if m.Type != rel.Target {
				return apperror.NewValidation(fmt.Sprintf("member %s is not a %s", m.Ref(), rel.Target))
			}
			m = u.track(m)
			u.snapshot(m)
			m.Fields.Set(rel.ForeignKey, owner.ID)
			if rel.TypeColumn != "" {
				m.Fields.Set(rel.TypeColumn, owner.Type)
			}

			at, staged := m.DeferredDestruction()
			if staged && at.IsZero() {
				at = now
			}
			switch {
			case staged && m.Persisted():
				if err := u.update(ctx, m, false); err != nil {
					return err
				}
				if err := u.destroy(ctx, m, at, false); err != nil {
					return err
				}
			case staged:
				m.DestroyedAt = &at
				if err := u.create(ctx, m, false); err != nil {
					return err
				}
			default:
				if err := u.save(ctx, m, false); err != nil {
					return err
				}
			}
			m.ClearDeferredDestruction()
		}
		return nil
	})
	return err
}

func (u *unit) save(ctx context.Context, rec *entity.Record, root bool) error {
	if rec.Persisted() {
		return u.update(ctx, rec, root)
	}
	return u.create(ctx, rec, root)
}

func (u *unit) create(ctx context.Context, rec *entity.Record, root bool) error {
	def, err := u.s.lookup(rec.Type)
	if err != nil {
		return err
	}
	if rec.Persisted() {
		return apperror.NewConflict(fmt.Sprintf("%s is already persisted", rec.Ref()))
	}
	if err := u.validate(ctx, def, rec); err != nil {
		return err
	}
	if rec.DestroyedAt != nil && !def.Lifecycle {
		return apperror.NewLifecycleUnsupported(def.Name, "create destroyed")
	}

	u.snapshot(rec)
	rec.DestroyedAt = instant.NormalizePtr(rec.DestroyedAt)
	for _, c := range def.Columns {
		if def.CounterColumn(c.Name) {
			rec.Fields.Set(c.Name, int64(0))
		}
	}

	if err := u.s.runHook(ctx, domain.BeforeCreate, rec); err != nil {
		return err
	}
	if err := u.s.repo.Insert(ctx, def, rec); err != nil {
		return fmt.Errorf("create %s: %w", rec.Ref(), err)
	}
	if rec.DestroyedAt == nil {
		rec.SetPersisted(true)
		if err := u.adjustCounters(ctx, rec, 1); err != nil {
			return err
		}
	}
	u.track(rec)

	if err := u.s.runHook(ctx, domain.AfterCreate, rec); err != nil {
		return err
	}
	if err := u.notify(ctx, OpCreate, rec, rec.DestroyedAt, root); err != nil {
		return err
	}
	u.afterCommit(ctx, domain.AfterCreateCommit, rec)
	return nil
}

func (u *unit) update(ctx context.Context, rec *entity.Record, root bool) error {
	def, err := u.s.lookup(rec.Type)
	if err != nil {
		return err
	}
	if err := u.validate(ctx, def, rec); err != nil {
		return err
	}
	u.snapshot(rec)

	if err := u.s.runHook(ctx, domain.BeforeUpdate, rec); err != nil {
		return err
	}
	if err := u.s.repo.Update(ctx, def, rec); err != nil {
		return fmt.Errorf("update %s: %w", rec.Ref(), err)
	}
	if err := u.s.runHook(ctx, domain.AfterUpdate, rec); err != nil {
		return err
	}
	if err := u.notify(ctx, OpUpdate, rec, nil, root); err != nil {
		return err
	}
	u.afterCommit(ctx, domain.AfterUpdateCommit, rec)
	return nil
}

// validate is the pipeline of ordinary saves: unknown columns, then the
// registered validators.
func (u *unit) validate(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	for name := range rec.Fields {
		if !def.HasColumn(name) || name == metadata.ColumnID || name == metadata.ColumnDestroyedAt {
			return apperror.NewValidation(fmt.Sprintf("unknown field %q for %s", name, def.Name)).
				WithDetail("field", name)
		}
	}
	if err := u.s.hooks.RunValidators(ctx, rec); err != nil {
		if apperror.IsAppError(err) {
			return err
		}
		return apperror.NewValidation(err.Error()).WithDetail("record", rec.Ref().String())
	}
	return nil
}
