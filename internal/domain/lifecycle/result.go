package lifecycle

import (
	"time"

	"tombstone/internal/core/entity"
)

// Operation names a lifecycle operation.
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDestroy Operation = "destroy"
	OpRestore Operation = "restore"
	// OpPurge is a destroy that removed the row: the type has no
	// destroyed_at column or the relation hard-deletes.
	OpPurge  Operation = "purge"
	OpDelete Operation = "delete"
)

// Result reports the outcome of a non-strict operation.
// OK is false when the whole call was rolled back; Err says why.
type Result struct {
	OK  bool  `json:"ok"`
	Err error `json:"-"`

	// Instant is the correlation instant: the destruction instant written by
	// Destroy, or the instant matched by Restore. Nil when none applied.
	Instant *time.Time `json:"instant,omitempty"`

	Destroyed []entity.Ref `json:"destroyed,omitempty"`
	Restored  []entity.Ref `json:"restored,omitempty"`
	Purged    []entity.Ref `json:"purged,omitempty"`
}

// Size is the number of records transitioned by the call.
func (r Result) Size() int {
	return len(r.Destroyed) + len(r.Restored) + len(r.Purged)
}
