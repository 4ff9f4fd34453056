// Package scope is the visibility flag threaded through every record query.
//
// The zero value is the default scope: destroyed records are excluded.
// Seeing destroyed records always requires an explicit Unscoped or
// Destroyed/DestroyedAt call on the query being built.
package scope

import (
	"fmt"
	"time"

	"tombstone/internal/core/instant"
)

// Mode selects which lifecycle states a query returns.
type Mode int

const (
	// Active returns records whose destroyed_at is null.
	Active Mode = iota
	// All bypasses the lifecycle predicate.
	All
	// Destroyed returns only records whose destroyed_at is set.
	Destroyed
)

func (m Mode) String() string {
	switch m {
	case Active:
		return "active"
	case All:
		return "all"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Scope is the lifecycle predicate of a query.
type Scope struct {
	Mode Mode
	// At restricts a Destroyed scope to one exact destruction instant.
	At *time.Time
}

// Default excludes destroyed records.
func Default() Scope { return Scope{} }

// Unscoped includes destroyed records.
func Unscoped() Scope { return Scope{Mode: All} }

// OnlyDestroyed returns destroyed records only.
func OnlyDestroyed() Scope { return Scope{Mode: Destroyed} }

// DestroyedAt returns records destroyed at exactly t.
func DestroyedAt(t time.Time) Scope {
	n := instant.Normalize(t)
	return Scope{Mode: Destroyed, At: &n}
}

// Includes reports whether a record with the given destroyed_at is visible.
func (s Scope) Includes(destroyedAt *time.Time) bool {
	switch s.Mode {
	case All:
		return true
	case Destroyed:
		if destroyedAt == nil {
			return false
		}
		return s.At == nil || instant.Equal(destroyedAt, s.At)
	default:
		return destroyedAt == nil
	}
}

// Parse maps the textual scope used by the HTTP API and the CLI.
// An empty name is the default scope.
func Parse(name string, at *time.Time) (Scope, error) {
	switch name {
	case "", "active":
		if at != nil {
			return Scope{}, fmt.Errorf("destroyed instant requires scope %q", "destroyed")
		}
		return Default(), nil
	case "all", "unscoped":
		return Unscoped(), nil
	case "destroyed":
		if at != nil {
			return DestroyedAt(*at), nil
		}
		return OnlyDestroyed(), nil
	}
	return Scope{}, fmt.Errorf("unknown scope %q", name)
}

func (s Scope) String() string {
	if s.At != nil {
		return fmt.Sprintf("%s@%s", s.Mode, s.At.Format(time.RFC3339Nano))
	}
	return s.Mode.String()
}
