// Package id provides record identities.
// Identities are UUIDv7: time-ordered, assigned once at creation and never reused.
package id

import (
	"github.com/google/uuid"
)

// ID is the identity of every record managed by the lifecycle engine.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// FromAny converts a value read back from a driver into an ID.
// Drivers return UUID columns as [16]byte (pgx), []byte or string (database/sql).
func FromAny(v any) (ID, bool) {
	switch x := v.(type) {
	case ID:
		return x, true
	case [16]byte:
		return ID(x), true
	case []byte:
		if len(x) == 16 {
			u, err := uuid.FromBytes(x)
			return u, err == nil
		}
		u, err := uuid.ParseBytes(x)
		return u, err == nil
	case string:
		u, err := uuid.Parse(x)
		return u, err == nil
	case *ID:
		if x == nil {
			return uuid.Nil, false
		}
		return *x, true
	}
	return uuid.Nil, false
}
