package entity

import (
	"fmt"
	"time"

	"tombstone/internal/core/id"
	"tombstone/internal/core/instant"
)

// Ref identifies a record across types.
type Ref struct {
	Type string `json:"type"`
	ID   id.ID  `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

// Record is a row of any registered type.
//
// DestroyedAt is the only lifecycle flag: nil means active, set means destroyed
// as of that instant. A destroyed record stays persisted; only a hard delete
// clears persisted.
type Record struct {
	Type        string     `json:"type"`
	ID          id.ID      `json:"id"`
	DestroyedAt *time.Time `json:"destroyedAt,omitempty"`
	Fields      Fields     `json:"fields"`

	persisted bool
	deferred  *time.Time
}

// New builds an unsaved active record with a fresh identity.
func New(typeName string, fields Fields) *Record {
	if fields == nil {
		fields = Fields{}
	}
	return &Record{Type: typeName, ID: id.New(), Fields: fields}
}

// Loaded builds a record read back from storage.
func Loaded(typeName string, recID id.ID, destroyedAt *time.Time, fields Fields) *Record {
	return &Record{
		Type:        typeName,
		ID:          recID,
		DestroyedAt: instant.NormalizePtr(destroyedAt),
		Fields:      fields,
		persisted:   true,
	}
}

// Ref returns the cross-type identity.
func (r *Record) Ref() Ref {
	return Ref{Type: r.Type, ID: r.ID}
}

// Destroyed reports whether destroyed_at is set.
func (r *Record) Destroyed() bool {
	return r.DestroyedAt != nil
}

// Persisted reports whether the record exists in storage under its identity.
func (r *Record) Persisted() bool {
	return r.persisted
}

// SetPersisted is called by the engine after insert and hard delete.
func (r *Record) SetPersisted(v bool) {
	r.persisted = v
}

// MarkForDeferredDestruction stages destruction at the given instant for the
// next save of the owning aggregate. A zero instant stays zero and is
// resolved by the engine's clock when the save runs.
func (r *Record) MarkForDeferredDestruction(at time.Time) {
	if !at.IsZero() {
		at = instant.Normalize(at)
	}
	r.deferred = &at
}

// DeferredDestruction returns the staged instant, if any. A zero instant
// means "when saved".
func (r *Record) DeferredDestruction() (time.Time, bool) {
	if r.deferred == nil {
		return time.Time{}, false
	}
	return *r.deferred, true
}

// ClearDeferredDestruction drops the staged instant once applied.
func (r *Record) ClearDeferredDestruction() {
	r.deferred = nil
}

// Snapshot captures the mutable in-memory state.
type Snapshot struct {
	destroyedAt *time.Time
	fields      Fields
	persisted   bool
	deferred    *time.Time
}

// Snapshot captures state for rollback after a failed transaction.
func (r *Record) Snapshot() Snapshot {
	var at *time.Time
	if r.DestroyedAt != nil {
		v := *r.DestroyedAt
		at = &v
	}
	return Snapshot{
		destroyedAt: at,
		fields:      r.Fields.Clone(),
		persisted:   r.persisted,
		deferred:    r.deferred,
	}
}

// Rollback returns the record to a captured state.
func (r *Record) Rollback(s Snapshot) {
	r.DestroyedAt = s.destroyedAt
	r.Fields = s.fields
	r.persisted = s.persisted
	r.deferred = s.deferred
}
