package domain

import (
	"context"
	"sync"

	"tombstone/internal/core/entity"
)

// HookEvent represents lifecycle event type.
//
// Destroy and restore events are distinct from update events: a destroy never
// fires update hooks and a restore never runs validation.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	AfterUpdate  HookEvent = "after_update"

	BeforeDestroy HookEvent = "before_destroy"
	AfterDestroy  HookEvent = "after_destroy"
	BeforeRestore HookEvent = "before_restore"
	AfterRestore  HookEvent = "after_restore"

	// Commit events run after the enclosing transaction commits.
	// Their errors are logged and never roll anything back.
	AfterCreateCommit  HookEvent = "after_create_commit"
	AfterUpdateCommit  HookEvent = "after_update_commit"
	AfterDestroyCommit HookEvent = "after_destroy_commit"
	AfterRestoreCommit HookEvent = "after_restore_commit"
)

// AnyType registers a hook for every record type.
const AnyType = "*"

// Hook is a function that runs at specific lifecycle points.
// Returning an error from a before/after hook aborts the whole operation.
type Hook func(ctx context.Context, rec *entity.Record) error

// Validator is one step of the validation pipeline run on create and update.
type Validator func(ctx context.Context, rec *entity.Record) error

// HookRegistry stores hooks per record type and event.
type HookRegistry struct {
	mu         sync.RWMutex
	hooks      map[string]map[HookEvent][]Hook
	validators map[string][]Validator
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		hooks:      make(map[string]map[HookEvent][]Hook),
		validators: make(map[string][]Validator),
	}
}

// On registers a hook for the specified type and event.
func (r *HookRegistry) On(typeName string, event HookEvent, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byEvent, ok := r.hooks[typeName]
	if !ok {
		byEvent = make(map[HookEvent][]Hook)
		r.hooks[typeName] = byEvent
	}
	byEvent[event] = append(byEvent[event], hook)
}

// Validate registers a validation step for the type.
func (r *HookRegistry) Validate(typeName string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[typeName] = append(r.validators[typeName], v)
}

// Run executes type-specific hooks, then AnyType hooks, stopping at the first error.
func (r *HookRegistry) Run(ctx context.Context, event HookEvent, rec *entity.Record) error {
	for _, hook := range r.list(rec.Type, event) {
		if err := hook(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// RunValidators executes the validation pipeline.
func (r *HookRegistry) RunValidators(ctx context.Context, rec *entity.Record) error {
	r.mu.RLock()
	vs := append(append([]Validator(nil), r.validators[rec.Type]...), r.validators[AnyType]...)
	r.mu.RUnlock()
	for _, v := range vs {
		if err := v(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether any hook is registered for the event.
func (r *HookRegistry) Has(typeName string, event HookEvent) bool {
	return len(r.list(typeName, event)) > 0
}

func (r *HookRegistry) list(typeName string, event HookEvent) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Hook
	out = append(out, r.hooks[typeName][event]...)
	if typeName != AnyType {
		out = append(out, r.hooks[AnyType][event]...)
	}
	return out
}

// Convenience methods

// OnBeforeDestroy registers a hook to run before destroy.
func (r *HookRegistry) OnBeforeDestroy(typeName string, hook Hook) {
	r.On(typeName, BeforeDestroy, hook)
}

// OnAfterDestroy registers a hook to run after destroy.
func (r *HookRegistry) OnAfterDestroy(typeName string, hook Hook) {
	r.On(typeName, AfterDestroy, hook)
}

// OnBeforeRestore registers a hook to run before restore.
func (r *HookRegistry) OnBeforeRestore(typeName string, hook Hook) {
	r.On(typeName, BeforeRestore, hook)
}

// OnAfterRestore registers a hook to run after restore.
func (r *HookRegistry) OnAfterRestore(typeName string, hook Hook) {
	r.On(typeName, AfterRestore, hook)
}

// OnAfterDestroyCommit registers a hook to run once the destroying transaction commits.
func (r *HookRegistry) OnAfterDestroyCommit(typeName string, hook Hook) {
	r.On(typeName, AfterDestroyCommit, hook)
}
