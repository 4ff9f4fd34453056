package tx

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// CommitHook runs after the enclosing transaction durably commits.
// Its error cannot undo the commit; managers log it.
type CommitHook func(ctx context.Context) error

// CommitHooks collects hooks registered while a transaction is open.
type CommitHooks struct {
	mu    sync.Mutex
	hooks []CommitHook
}

type commitHooksKey struct{}

// WithCommitHooks opens a collector for an outermost transaction.
// Manager implementations call it only when they BEGIN a real transaction;
// nested calls keep the context of the outer one so hooks run on the real commit.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// AfterCommit registers fn on the transaction carried by ctx.
// It returns false when ctx carries no transaction; the caller decides
// whether to run fn immediately.
func AfterCommit(ctx context.Context, fn CommitHook) bool {
	h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks)
	if !ok {
		return false
	}
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
	return true
}

// Len returns the number of pending hooks.
func (h *CommitHooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Discard drops pending hooks after a rollback.
func (h *CommitHooks) Discard() {
	h.mu.Lock()
	h.hooks = nil
	h.mu.Unlock()
}

// Run executes pending hooks in registration order and clears them.
// Every hook runs even if an earlier one fails; panics are converted to errors.
func (h *CommitHooks) Run(ctx context.Context) error {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()

	var errs []error
	for i, fn := range hooks {
		if err := runHook(ctx, fn); err != nil {
			errs = append(errs, fmt.Errorf("commit hook %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func runHook(ctx context.Context, fn CommitHook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
