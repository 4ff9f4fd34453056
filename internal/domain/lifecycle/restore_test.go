package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/domain"
)

// C1 was destroyed a day before its post, C2 with it. Restoring the post
// brings back C2 only.
func TestRestore_OnlyDependentsFromTheSameInstant(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c1, c2 := f.comment(post), f.comment(post)
	require.Equal(t, int64(2), f.counter(post))

	dayBefore := f.now.Add(-24 * time.Hour)
	require.NoError(t, f.svc.DestroyStrict(f.ctx, c1, At(dayBefore)))
	assert.Equal(t, int64(1), f.counter(post))

	res := f.svc.Destroy(f.ctx, post)
	require.True(t, res.OK, "%v", res.Err)
	assert.ElementsMatch(t, []entity.Ref{c2.Ref(), post.Ref()}, res.Destroyed)
	assert.Equal(t, int64(0), f.counter(post))
	assert.True(t, f.reload(c1).DestroyedAt.Equal(norm(dayBefore)), "already destroyed dependent keeps its instant")

	res = f.svc.Restore(f.ctx, post)
	require.True(t, res.OK, "%v", res.Err)
	require.NotNil(t, res.Instant)
	assert.True(t, res.Instant.Equal(norm(f.now)))
	assert.ElementsMatch(t, []entity.Ref{c2.Ref(), post.Ref()}, res.Restored)

	assert.False(t, f.reload(post).Destroyed())
	assert.False(t, f.reload(c2).Destroyed())
	assert.True(t, f.reload(c1).DestroyedAt.Equal(norm(dayBefore)))
	assert.Equal(t, int64(1), f.counter(post))
	assert.Equal(t, f.liveComments(post), f.counter(post))
}

func TestRestore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c := f.comment(post)
	vote := f.create("vote", entity.Fields{"comment_id": c.ID})

	require.NoError(t, f.svc.DestroyStrict(f.ctx, post))
	require.NoError(t, f.svc.RestoreStrict(f.ctx, post))

	assert.Nil(t, post.DestroyedAt)
	assert.True(t, post.Persisted())
	for _, r := range []*entity.Record{post, c, vote} {
		got, err := f.svc.Records(r.Type).Find(f.ctx, r.ID)
		require.NoError(t, err, r.Ref().String())
		assert.Nil(t, got.DestroyedAt)
	}
}

func TestRestore_FiresRestoreHooksOnly(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	f.comment(post)
	require.NoError(t, f.svc.DestroyStrict(f.ctx, post))

	var events []string
	for _, ev := range []domain.HookEvent{domain.BeforeRestore, domain.AfterRestore, domain.BeforeUpdate, domain.AfterUpdate, domain.BeforeCreate} {
		ev := ev
		f.svc.Hooks().On(domain.AnyType, ev, func(_ context.Context, r *entity.Record) error {
			events = append(events, r.Type+":"+string(ev))
			return nil
		})
	}
	f.svc.Hooks().Validate(domain.AnyType, func(context.Context, *entity.Record) error {
		return errors.New("restore must not validate")
	})

	require.NoError(t, f.svc.RestoreStrict(f.ctx, post))

	assert.Equal(t, []string{
		"post:" + string(domain.BeforeRestore),
		"comment:" + string(domain.BeforeRestore),
		"comment:" + string(domain.AfterRestore),
		"post:" + string(domain.AfterRestore),
	}, events)
}

func TestRestore_HookFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c := f.comment(post)
	require.NoError(t, f.svc.DestroyStrict(f.ctx, post))
	destroyedAt := *post.DestroyedAt

	f.svc.Hooks().OnAfterRestore("comment", func(context.Context, *entity.Record) error {
		return errors.New("not today")
	})

	res := f.svc.Restore(f.ctx, post)
	require.False(t, res.OK)
	assert.True(t, apperror.IsCallbackAborted(res.Err))
	assert.Empty(t, res.Restored)

	require.NotNil(t, post.DestroyedAt)
	assert.True(t, post.DestroyedAt.Equal(destroyedAt))
	assert.True(t, f.reload(post).Destroyed())
	assert.True(t, f.reload(c).Destroyed())
	assert.Equal(t, int64(0), f.counter(post))
}

func TestRestore_CounterFollowsDirectTransitions(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c1, c2, c3 := f.comment(post), f.comment(post), f.comment(post)
	assert.Equal(t, int64(3), f.counter(post))

	require.NoError(t, f.svc.DestroyStrict(f.ctx, c1))
	require.NoError(t, f.svc.DestroyStrict(f.ctx, c2))
	assert.Equal(t, int64(1), f.counter(post))
	assert.Equal(t, f.liveComments(post), f.counter(post))

	require.NoError(t, f.svc.RestoreStrict(f.ctx, c1))
	assert.Equal(t, int64(2), f.counter(post))

	require.NoError(t, f.svc.RestoreStrict(f.ctx, c3), "restoring an active record is allowed")
	assert.Equal(t, int64(2), f.counter(post), "active record does not count twice")
	assert.Equal(t, f.liveComments(post), f.counter(post))
}

func TestRestore_ActiveRecordHasNoInstant(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")

	res := f.svc.Restore(f.ctx, post)
	require.True(t, res.OK)
	assert.Nil(t, res.Instant)
	assert.Equal(t, []entity.Ref{post.Ref()}, res.Restored)
}

func TestRestore_WithoutCascadeThenCorrelation(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c := f.comment(post)
	require.NoError(t, f.svc.DestroyStrict(f.ctx, post))
	at := *post.DestroyedAt

	res := f.svc.Restore(f.ctx, post, WithoutCascade())
	require.True(t, res.OK, "%v", res.Err)
	assert.Equal(t, []entity.Ref{post.Ref()}, res.Restored)
	assert.True(t, f.reload(c).Destroyed())

	// post is active now, so its own destroyed_at no longer says which
	// dependents belong to it.
	res = f.svc.Restore(f.ctx, post)
	require.True(t, res.OK)
	assert.True(t, f.reload(c).Destroyed())

	res = f.svc.Restore(f.ctx, post, WithCorrelation(at))
	require.True(t, res.OK, "%v", res.Err)
	assert.False(t, f.reload(c).Destroyed())
	assert.Equal(t, int64(1), f.counter(post))
}

func TestRestore_CorrelationIsNormalized(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c := f.comment(post)
	at := time.Date(2024, 3, 1, 10, 0, 0, 500123999, time.UTC)
	require.NoError(t, f.svc.DestroyStrict(f.ctx, post, At(at)))

	loaded := f.reload(post)
	require.NoError(t, f.svc.RestoreStrict(f.ctx, loaded))
	assert.False(t, f.reload(c).Destroyed())
}

func TestRestore_UnsupportedForPlainTypes(t *testing.T) {
	f := newFixture(t)
	folder := f.create("folder", entity.Fields{"name": "inbox"})

	err := f.svc.RestoreStrict(f.ctx, folder)
	assert.True(t, apperror.HasCode(err, apperror.CodeLifecycleUnsupported))
}

func TestRestore_DoesNotResurrectHardDeletedRows(t *testing.T) {
	f := newFixture(t)
	doc := f.create("doc", entity.Fields{})
	att := f.create("attachment", entity.Fields{"owner_id": doc.ID, "owner_type": "doc", "name": "a"})

	require.NoError(t, f.svc.DestroyStrict(f.ctx, doc))
	require.NoError(t, f.svc.RestoreStrict(f.ctx, doc))

	assert.False(t, f.reload(doc).Destroyed())
	assert.False(t, f.exists(att))
}
