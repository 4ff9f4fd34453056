package lifecycle

import (
	"context"
	"fmt"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/domain"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

// target resolves the concrete type on the other side of rel.
// A nil def with nil error means the association is empty.
func (s *Service) target(owner *entity.Record, rel metadata.RelationDef) (*metadata.TypeDef, error) {
	if !rel.Polymorphic() {
		def, ok := s.registry.Get(rel.Target)
		if !ok {
			return nil, apperror.NewPolicyResolution(rel.Name, fmt.Sprintf("relation target %q is not registered", rel.Target))
		}
		return def, nil
	}

	typeName := owner.Fields.GetString(rel.TypeColumn)
	_, hasFK := owner.Fields.GetID(rel.ForeignKey)
	if typeName == "" {
		if !hasFK {
			return nil, nil
		}
		return nil, apperror.NewPolicyResolution(rel.Name,
			fmt.Sprintf("%s references %s without a type in %s", owner.Ref(), rel.ForeignKey, rel.TypeColumn))
	}
	def, ok := s.registry.Get(typeName)
	if !ok {
		return nil, apperror.NewPolicyResolution(rel.Name,
			fmt.Sprintf("%s.%s names unregistered type %q", owner.Ref(), rel.TypeColumn, typeName)).
			WithDetail("record", owner.Ref().String())
	}
	return def, nil
}

// plan resolves the action for one relation of owner.
func (s *Service) plan(owner *entity.Record, rel metadata.RelationDef, purge bool) (metadata.Action, *metadata.TypeDef, error) {
	if rel.Dependent == "" || rel.Dependent == metadata.PolicyNone {
		return metadata.ActionSkip, nil, nil
	}
	def, err := s.target(owner, rel)
	if err != nil || def == nil {
		return metadata.ActionSkip, nil, err
	}
	act, ok := rel.Resolve(def, purge)
	if !ok {
		return metadata.ActionSkip, nil, apperror.NewPolicyResolution(rel.Name,
			fmt.Sprintf("dependent %q on %s requires %s to have %s", rel.Dependent, owner.Type, def.Name, metadata.ColumnDestroyedAt))
	}
	return act, def, nil
}

// members enumerates the records on the other side of rel visible under sc.
// Every returned record goes through the unit's identity map.
func (u *unit) members(ctx context.Context, owner *entity.Record, rel metadata.RelationDef, def *metadata.TypeDef, sc scope.Scope) ([]*entity.Record, error) {
	var recs []*entity.Record

	if rel.Kind == metadata.BelongsTo {
		fk, ok := owner.Fields.GetID(rel.ForeignKey)
		if !ok {
			return nil, nil
		}
		rec, err := u.s.repo.Get(ctx, def, fk, sc)
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", owner.Type, rel.Name, err)
		}
		recs = []*entity.Record{rec}
	} else {
		match := map[string]any{rel.ForeignKey: owner.ID}
		if rel.TypeColumn != "" {
			match[rel.TypeColumn] = owner.Type
		}
		var err error
		recs, err = u.s.repo.List(ctx, def, domain.RecordQuery{Scope: sc, Match: match})
		if err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", owner.Type, rel.Name, err)
		}
	}

	for i, r := range recs {
		recs[i] = u.track(r)
	}
	return recs, nil
}

// splitRelations orders relations for a transition: dependents that point
// at the record are handled before it, the records it points at after it.
func splitRelations(def *metadata.TypeDef) (before, after []metadata.RelationDef) {
	for _, rel := range def.Relations {
		if rel.Kind == metadata.BelongsTo {
			after = append(after, rel)
		} else {
			before = append(before, rel)
		}
	}
	return before, after
}
