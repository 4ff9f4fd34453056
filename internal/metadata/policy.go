package metadata

// Action is what a transition does to one relation.
type Action int

const (
	ActionSkip Action = iota
	ActionCascade
	ActionHardDelete
)

func (a Action) String() string {
	switch a {
	case ActionCascade:
		return "cascade"
	case ActionHardDelete:
		return "hard_delete"
	}
	return "skip"
}

// Resolve maps the declared policy to an action for a concrete target type.
//
// purge is set when the owning record is itself being removed from storage
// (its type has no destroyed_at column, or it was reached through a hard
// delete). Every non-none relation then becomes a hard delete, transitively.
//
// ok is false when the declaration cannot be honored: an explicit cascade
// toward a type without destroyed_at.
func (r RelationDef) Resolve(target *TypeDef, purge bool) (act Action, ok bool) {
	switch r.Dependent {
	case "", PolicyNone:
		return ActionSkip, true
	}
	if purge {
		return ActionHardDelete, true
	}
	switch r.Dependent {
	case PolicyHardDelete:
		return ActionHardDelete, true
	case PolicyCascade:
		if !target.Lifecycle {
			return ActionSkip, false
		}
		return ActionCascade, true
	case PolicyDestroy:
		if target.Lifecycle {
			return ActionCascade, true
		}
		return ActionHardDelete, true
	}
	return ActionSkip, false
}
