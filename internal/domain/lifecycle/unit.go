package lifecycle

import (
	"context"
	"time"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/tx"
	"tombstone/internal/domain"
)

type snapshot struct {
	rec  *entity.Record
	snap entity.Snapshot
}

type transition struct {
	typeName string
	op       Operation
}

// unit is the state of one public call: which records it loaded, which it
// is currently transitioning, and how to undo its in-memory changes.
type unit struct {
	s  *Service
	op Operation

	identity  map[entity.Ref]*entity.Record
	busy      map[entity.Ref]bool
	snapped   map[*entity.Record]bool
	snapshots []snapshot

	pending     []tx.CommitHook
	transitions []transition
	res         Result
}

func newUnit(s *Service, op Operation) *unit {
	return &unit{
		s:        s,
		op:       op,
		identity: make(map[entity.Ref]*entity.Record),
		busy:     make(map[entity.Ref]bool),
		snapped:  make(map[*entity.Record]bool),
	}
}

// track returns the instance already loaded for the same identity, so a
// record reached twice in one cascade is transitioned once.
func (u *unit) track(rec *entity.Record) *entity.Record {
	ref := rec.Ref()
	if existing, ok := u.identity[ref]; ok {
		return existing
	}
	u.identity[ref] = rec
	return rec
}

func (u *unit) snapshot(rec *entity.Record) {
	if u.snapped[rec] {
		return
	}
	u.snapped[rec] = true
	u.snapshots = append(u.snapshots, snapshot{rec: rec, snap: rec.Snapshot()})
}

func (u *unit) rollback() {
	for i := len(u.snapshots) - 1; i >= 0; i-- {
		u.snapshots[i].rec.Rollback(u.snapshots[i].snap)
	}
	u.pending = nil
}

// afterCommit schedules commit hooks for rec. Hooks registered on the
// transaction run when the outermost transaction commits.
func (u *unit) afterCommit(ctx context.Context, event domain.HookEvent, rec *entity.Record) {
	if !u.s.hooks.Has(rec.Type, event) {
		return
	}
	fn := func(ctx context.Context) error {
		return u.s.hooks.Run(ctx, event, rec)
	}
	if !tx.AfterCommit(ctx, fn) {
		u.pending = append(u.pending, fn)
	}
}

// runPending runs commit hooks the tx manager could not take.
func (u *unit) runPending(ctx context.Context) {
	for _, fn := range u.pending {
		if err := fn(ctx); err != nil {
			u.s.log.WithContext(ctx).Warnw("after commit hook failed", "operation", u.op, "error", err)
		}
	}
	u.pending = nil
}

func (u *unit) notify(ctx context.Context, op Operation, rec *entity.Record, at *time.Time, root bool) error {
	u.transitions = append(u.transitions, transition{typeName: rec.Type, op: op})
	for _, o := range u.s.observers {
		if err := o.Transitioned(ctx, Transition{Operation: op, Record: rec, Instant: at, Root: root}); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) observe() {
	for _, t := range u.transitions {
		u.s.metrics.ObserveTransition(t.typeName, t.op)
	}
	u.s.metrics.ObserveCascade(u.op, u.res.Size())
}

func (u *unit) result(err error) Result {
	r := u.res
	r.OK = err == nil
	r.Err = err
	if err != nil {
		r.Destroyed, r.Restored, r.Purged, r.Instant = nil, nil, nil, nil
	}
	return r
}
