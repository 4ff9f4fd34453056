package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/domain/filter"
	"tombstone/internal/domain/scope"
)

func TestQuery_Scopes(t *testing.T) {
	f := newFixture(t)
	p1, p2, p3 := f.post("a"), f.post("b"), f.post("c")
	require.NoError(t, f.svc.DestroyStrict(f.ctx, p2))

	n, err := f.svc.Records("post").Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.svc.Records("post").Unscoped().Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := f.svc.Records("post").Destroyed().First(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, got.ID)

	got, err = f.svc.Records("post").Scope(scope.DestroyedAt(f.now)).First(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, got.ID)

	_, err = f.svc.Records("post").DestroyedAt(f.now.Add(1000)).First(f.ctx)
	assert.True(t, apperror.IsNotFound(err))

	all, err := f.svc.Records("post").OrderBy("-title").All(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, p3.ID, all[0].ID)
	assert.Equal(t, p1.ID, all[1].ID)
}

func TestQuery_FilterAndPaging(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"alpha", "beta", "gamma", "delta"} {
		f.post(title)
	}

	page, err := f.svc.Records("post").OrderBy("title").Limit(2).Offset(1).List(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "beta", page.Items[0].Fields.GetString("title"))
	assert.Equal(t, "delta", page.Items[1].Fields.GetString("title"))

	recs, err := f.svc.Records("post").
		Where(filter.Item{Field: "title", Operator: filter.Contains, Value: "ta"}).
		OrderBy("title").
		All(f.ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "beta", recs[0].Fields.GetString("title"))
	assert.Equal(t, "delta", recs[1].Fields.GetString("title"))

	_, err = f.svc.Records("post").Where(filter.Eq("secret", 1)).All(f.ctx)
	assert.Error(t, err)
}

func TestQuery_EmptyPageHasItems(t *testing.T) {
	f := newFixture(t)
	page, err := f.svc.Records("post").List(f.ctx)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 50, page.Limit)
}

func TestQuery_DestroyedScopeOnPlainType(t *testing.T) {
	f := newFixture(t)
	f.create("folder", entity.Fields{"name": "inbox"})

	_, err := f.svc.Records("folder").Destroyed().All(f.ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodeLifecycleUnsupported))

	recs, err := f.svc.Records("folder").Unscoped().All(f.ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestQuery_UnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Records("ghost").All(f.ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownType))
}

func TestRelated_DefaultScopeAndWithDestroyed(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c1, c2 := f.comment(post), f.comment(post)
	other := f.post("other")
	f.comment(other)
	require.NoError(t, f.svc.DestroyStrict(f.ctx, c1))

	live, err := f.svc.Related(post, "comments").All(f.ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, c2.ID, live[0].ID)

	archived, err := f.svc.Related(post, "archived_comments").Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), archived)

	_, err = f.svc.Related(post, "comments").Find(f.ctx, c1.ID)
	assert.True(t, apperror.IsNotFound(err))

	got, err := f.svc.Related(post, "archived_comments").Find(f.ctx, c1.ID)
	require.NoError(t, err)
	assert.True(t, got.Destroyed())
}

func TestRelated_BelongsTo(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	c := f.comment(post)

	got, err := f.svc.Related(c, "post").First(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	require.NoError(t, f.svc.DestroyStrict(f.ctx, post))
	_, err = f.svc.Related(f.reload(c), "post").First(f.ctx)
	assert.True(t, apperror.IsNotFound(err))

	orphan := f.create("comment", entity.Fields{"body": "loose"})
	n, err := f.svc.Related(orphan, "post").Count(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelated_Polymorphic(t *testing.T) {
	f := newFixture(t)
	post := f.post("hello")
	note := f.create("note", entity.Fields{"subject_id": post.ID, "subject_type": "post"})

	got, err := f.svc.Related(note, "subject").First(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, post.Ref(), got.Ref())

	ghost := f.create("note", entity.Fields{"subject_id": post.ID, "subject_type": "ghost"})
	_, err = f.svc.Related(ghost, "subject").All(f.ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodePolicyResolution))

	_, err = f.svc.Related(note, "nope").All(f.ctx)
	assert.True(t, apperror.IsNotFound(err))
}
