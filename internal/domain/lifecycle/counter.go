package lifecycle

import (
	"context"
	"fmt"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
)

// adjustCounters moves every counter cache that counts rec as an active
// member. Loaded owner instances are updated in memory as well.
func (u *unit) adjustCounters(ctx context.Context, rec *entity.Record, delta int) error {
	for _, link := range u.s.registry.CounterLinks(rec.Type) {
		ownerID, ok := rec.Fields.GetID(link.ForeignKey)
		if !ok {
			continue
		}

		ownerType := link.OwnerType
		if link.TypeColumn != "" {
			declared := rec.Fields.GetString(link.TypeColumn)
			switch {
			case link.OwnerType != "" && declared != link.OwnerType:
				continue
			case link.OwnerType == "" && declared == "":
				return apperror.NewPolicyResolution(link.Relation,
					fmt.Sprintf("%s has no owner type in %s", rec.Ref(), link.TypeColumn))
			case link.OwnerType == "":
				ownerType = declared
			}
		}

		ownerDef, ok := u.s.registry.Get(ownerType)
		if !ok {
			return apperror.NewPolicyResolution(link.Relation,
				fmt.Sprintf("counter owner type %q is not registered", ownerType))
		}
		if err := u.s.repo.AdjustCounter(ctx, ownerDef, ownerID, link.Column, delta); err != nil {
			return fmt.Errorf("adjust %s.%s: %w", ownerType, link.Column, err)
		}

		if owner, ok := u.identity[entity.Ref{Type: ownerType, ID: ownerID}]; ok {
			u.snapshot(owner)
			n := owner.Fields.GetInt(link.Column) + int64(delta)
			if n < 0 {
				u.s.log.WithContext(ctx).Warnw("counter cache below zero, clamped",
					"owner", owner.Ref().String(), "column", link.Column)
				n = 0
			}
			owner.Fields.Set(link.Column, n)
		}
	}
	return nil
}
