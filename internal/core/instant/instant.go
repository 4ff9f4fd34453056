// Package instant defines how destruction instants are produced and compared.
//
// Every instant written to destroyed_at is normalized to UTC with microsecond
// precision before it is used in memory or stored. Storage engines keep at
// most microseconds, so a normalized in-memory value always compares equal to
// its reloaded copy and restore correlation never depends on a reload.
package instant

import "time"

// Precision is the resolution kept for destruction instants.
const Precision = time.Microsecond

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// System is the wall clock.
var System Clock = ClockFunc(time.Now)

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Normalize truncates t to Precision and converts it to UTC.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// NormalizePtr normalizes an optional instant.
func NormalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := Normalize(*t)
	return &n
}

// Equal compares two optional instants after normalization.
// Two absent instants are equal.
func Equal(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Normalize(*a).Equal(Normalize(*b))
}

// ToMicros encodes an instant for integer storage columns.
func ToMicros(t time.Time) int64 {
	return Normalize(t).UnixMicro()
}

// FromMicros decodes an integer storage column.
func FromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
