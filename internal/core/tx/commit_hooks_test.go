package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterCommit_NoTransaction(t *testing.T) {
	ok := AfterCommit(context.Background(), func(context.Context) error { return nil })
	assert.False(t, ok)
}

func TestCommitHooks_RunInOrder(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, AfterCommit(ctx, func(context.Context) error {
			order = append(order, i)
			return nil
		}))
	}
	assert.Equal(t, 3, hooks.Len())

	require.NoError(t, hooks.Run(ctx))
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, hooks.Len())
}

func TestCommitHooks_NewTransactionShadowsOuter(t *testing.T) {
	ctx, outer := WithCommitHooks(context.Background())
	inner, fresh := WithCommitHooks(ctx)

	assert.NotSame(t, outer, fresh)
	AfterCommit(inner, func(context.Context) error { return nil })
	assert.Equal(t, 0, outer.Len())
	assert.Equal(t, 1, fresh.Len())
}

func TestCommitHooks_ErrorsAndPanicsCollected(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())
	ran := false

	AfterCommit(ctx, func(context.Context) error { return errors.New("boom") })
	AfterCommit(ctx, func(context.Context) error { panic("kaboom") })
	AfterCommit(ctx, func(context.Context) error { ran = true; return nil })

	err := hooks.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "kaboom")
	assert.True(t, ran)
}

func TestCommitHooks_Discard(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())
	AfterCommit(ctx, func(context.Context) error { t.Fatal("must not run"); return nil })

	hooks.Discard()
	require.NoError(t, hooks.Run(ctx))
}
