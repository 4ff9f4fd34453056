package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tombstone/internal/core/entity"
)

func TestHookRegistry_RunOrderAndAnyType(t *testing.T) {
	reg := NewHookRegistry()
	var calls []string

	reg.On(AnyType, BeforeDestroy, func(context.Context, *entity.Record) error {
		calls = append(calls, "any")
		return nil
	})
	reg.OnBeforeDestroy("post", func(context.Context, *entity.Record) error {
		calls = append(calls, "post")
		return nil
	})

	err := reg.Run(context.Background(), BeforeDestroy, entity.New("post", nil))
	assert.NoError(t, err)
	assert.Equal(t, []string{"post", "any"}, calls)

	calls = nil
	assert.NoError(t, reg.Run(context.Background(), BeforeDestroy, entity.New("comment", nil)))
	assert.Equal(t, []string{"any"}, calls)
}

func TestHookRegistry_StopsAtFirstError(t *testing.T) {
	reg := NewHookRegistry()
	boom := errors.New("boom")
	second := false

	reg.OnBeforeRestore("post", func(context.Context, *entity.Record) error { return boom })
	reg.OnBeforeRestore("post", func(context.Context, *entity.Record) error { second = true; return nil })

	err := reg.Run(context.Background(), BeforeRestore, entity.New("post", nil))
	assert.ErrorIs(t, err, boom)
	assert.False(t, second)
}

func TestHookRegistry_Validators(t *testing.T) {
	reg := NewHookRegistry()
	reg.Validate("post", func(_ context.Context, r *entity.Record) error {
		if r.Fields.GetString("title") == "" {
			return errors.New("title required")
		}
		return nil
	})

	assert.Error(t, reg.RunValidators(context.Background(), entity.New("post", nil)))
	assert.NoError(t, reg.RunValidators(context.Background(), entity.New("post", entity.Fields{"title": "x"})))
	assert.False(t, reg.Has("post", AfterDestroy))
	assert.False(t, reg.Has("post", BeforeDestroy))
}
