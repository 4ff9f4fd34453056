package lifecycle

import "time"

type destroyOptions struct {
	at *time.Time
}

// DestroyOption customizes Destroy.
type DestroyOption func(*destroyOptions)

// At destroys with an explicit instant instead of the clock's now.
func At(t time.Time) DestroyOption {
	return func(o *destroyOptions) { o.at = &t }
}

type restoreOptions struct {
	correlation *time.Time
	recursive   bool
}

// RestoreOption customizes Restore.
type RestoreOption func(*restoreOptions)

// WithCorrelation matches dependents against t instead of the record's
// in-memory destroyed_at.
func WithCorrelation(t time.Time) RestoreOption {
	return func(o *restoreOptions) { o.correlation = &t }
}

// WithoutCascade restores the record alone.
func WithoutCascade() RestoreOption {
	return func(o *restoreOptions) { o.recursive = false }
}
