// Package memory provides an in-memory transactional record store.
//
// A transaction works on a clone of the committed state and swaps it in on
// commit, so a failed transaction leaves nothing behind. Transactions are
// serialized; reads outside a transaction see committed state only.
package memory

import (
	"context"
	"sync"
	"time"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/core/tx"
	"tombstone/pkg/logger"
)

type row struct {
	seq         int64
	destroyedAt *time.Time
	fields      entity.Fields
}

type state struct {
	seq    int64
	tables map[string]map[id.ID]*row
}

func newState() *state {
	return &state{tables: make(map[string]map[id.ID]*row)}
}

func (s *state) clone() *state {
	cp := &state{seq: s.seq, tables: make(map[string]map[id.ID]*row, len(s.tables))}
	for name, rows := range s.tables {
		t := make(map[id.ID]*row, len(rows))
		for k, r := range rows {
			rc := *r
			if r.destroyedAt != nil {
				at := *r.destroyedAt
				rc.destroyedAt = &at
			}
			rc.fields = r.fields.Clone()
			t[k] = &rc
		}
		cp.tables[name] = t
	}
	return cp
}

func (s *state) table(name string) map[id.ID]*row {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[id.ID]*row)
		s.tables[name] = t
	}
	return t
}

// Op names a store operation for fault injection.
type Op string

const (
	OpInsert         Op = "insert"
	OpUpdate         Op = "update"
	OpSetDestroyedAt Op = "set_destroyed_at"
	OpDelete         Op = "delete"
	OpAdjustCounter  Op = "adjust_counter"
)

// FaultFunc may return an error to make a write fail. Used by tests to
// simulate constraint violations in the middle of a cascade.
type FaultFunc func(op Op, table string, recID id.ID) error

// Store is the in-memory store. It implements tx.Manager and domain.RecordRepository.
type Store struct {
	mu        sync.RWMutex
	committed *state

	txMu  sync.Mutex
	fault FaultFunc
	log   *logger.Logger
}

type txKey struct{}

type memTx struct {
	state *state
}

// New creates an empty store.
func New(log *logger.Logger) *Store {
	if log == nil {
		log = logger.Default()
	}
	return &Store{committed: newState(), log: log.WithComponent("memory_store")}
}

// SetFault installs a fault injector. nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}

	hooks, err := s.commit(ctx, fn)
	if err != nil {
		return err
	}
	if err := hooks.Run(ctx); err != nil {
		s.log.WithContext(ctx).Warnw("commit hooks failed", "error", err)
	}
	return nil
}

// commit runs fn on a private copy of the state and publishes it when fn
// succeeds. The writer lock is released even if fn panics.
func (s *Store) commit(ctx context.Context, fn func(ctx context.Context) error) (*tx.CommitHooks, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	t := &memTx{state: s.committed.clone()}
	s.mu.RUnlock()

	txCtx := context.WithValue(ctx, txKey{}, t)
	txCtx, hooks := tx.WithCommitHooks(txCtx)

	if err := fn(txCtx); err != nil {
		hooks.Discard()
		return nil, err
	}

	s.mu.Lock()
	s.committed = t.state
	s.mu.Unlock()
	return hooks, nil
}

// read runs fn against the state visible to ctx.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(t.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

// write runs fn against the transaction state, or commits a single-write
// transaction when ctx carries none.
func (s *Store) write(ctx context.Context, op Op, table string, recID id.ID, fn func(st *state) error) error {
	s.mu.RLock()
	fault := s.fault
	s.mu.RUnlock()
	if fault != nil {
		if err := fault(op, table, recID); err != nil {
			return err
		}
	}

	if t, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(t.state)
	}
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*memTx).state)
	})
}

// Len returns the number of stored rows of a table, destroyed or not.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.committed.tables[table])
}
