package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLifecycleFlags(t *testing.T) {
	r := New("post", Fields{"title": "hello"})
	assert.False(t, r.Destroyed())
	assert.False(t, r.Persisted())

	now := time.Now()
	r.DestroyedAt = &now
	assert.True(t, r.Destroyed())

	loaded := Loaded("post", r.ID, &now, Fields{})
	assert.True(t, loaded.Persisted())
	assert.Equal(t, time.UTC, loaded.DestroyedAt.Location())
	assert.Equal(t, 0, loaded.DestroyedAt.Nanosecond()%1000)
}

func TestRecordSnapshotRollback(t *testing.T) {
	r := Loaded("post", New("post", nil).ID, nil, Fields{"comments_count": int64(2)})
	snap := r.Snapshot()

	at := time.Now()
	r.DestroyedAt = &at
	r.Fields["comments_count"] = int64(1)
	r.SetPersisted(false)

	r.Rollback(snap)
	assert.Nil(t, r.DestroyedAt)
	assert.Equal(t, int64(2), r.Fields.GetInt("comments_count"))
	assert.True(t, r.Persisted())
}

func TestDeferredDestruction(t *testing.T) {
	r := New("comment", nil)
	_, ok := r.DeferredDestruction()
	assert.False(t, ok)

	at := time.Date(2024, 1, 2, 3, 4, 5, 6789, time.UTC)
	r.MarkForDeferredDestruction(at)
	got, ok := r.DeferredDestruction()
	require.True(t, ok)
	assert.True(t, got.Equal(at.Truncate(time.Microsecond)))

	r.ClearDeferredDestruction()
	_, ok = r.DeferredDestruction()
	assert.False(t, ok)

	r.MarkForDeferredDestruction(time.Time{})
	got, ok = r.DeferredDestruction()
	require.True(t, ok)
	assert.True(t, got.IsZero(), "zero instant is left for the engine to resolve")
}

func TestRef(t *testing.T) {
	r := New("post", nil)
	assert.Equal(t, "post/"+r.ID.String(), r.Ref().String())
}
