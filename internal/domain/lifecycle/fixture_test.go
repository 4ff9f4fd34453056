package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/instant"
	"tombstone/internal/infrastructure/storage/memory"
	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

// blogSchema covers every policy: cascade with counter caches on both sides,
// hard delete through a polymorphic has_many, none, a polymorphic belongs_to,
// and a type without destroyed_at owning lifecycle records.
func blogSchema() []metadata.TypeDef {
	return []metadata.TypeDef{
		{
			Name:      "post",
			Lifecycle: true,
			Columns: []metadata.ColumnDef{
				{Name: "title", Kind: metadata.KindString},
				{Name: "comments_count", Kind: metadata.KindInteger},
			},
			Relations: []metadata.RelationDef{
				{Name: "comments", Kind: metadata.HasMany, Target: "comment", ForeignKey: "post_id", Dependent: metadata.PolicyDestroy, CounterCache: "comments_count"},
				{Name: "attachments", Kind: metadata.HasMany, Target: "attachment", ForeignKey: "owner_id", TypeColumn: "owner_type", Dependent: metadata.PolicyDestroy},
				{Name: "taggings", Kind: metadata.HasMany, Target: "tagging", ForeignKey: "post_id", Dependent: metadata.PolicyNone},
				{Name: "archived_comments", Kind: metadata.HasMany, Target: "comment", ForeignKey: "post_id", WithDestroyed: true},
			},
		},
		{
			Name:      "comment",
			Lifecycle: true,
			Columns: []metadata.ColumnDef{
				{Name: "post_id", Kind: metadata.KindID},
				{Name: "body", Kind: metadata.KindString},
			},
			Relations: []metadata.RelationDef{
				{Name: "post", Kind: metadata.BelongsTo, Target: "post", ForeignKey: "post_id", CounterCache: "comments_count"},
				{Name: "votes", Kind: metadata.HasMany, Target: "vote", ForeignKey: "comment_id", Dependent: metadata.PolicyCascade},
			},
		},
		{
			Name:      "vote",
			Lifecycle: true,
			Columns:   []metadata.ColumnDef{{Name: "comment_id", Kind: metadata.KindID}},
		},
		{
			Name: "attachment",
			Columns: []metadata.ColumnDef{
				{Name: "owner_id", Kind: metadata.KindID},
				{Name: "owner_type", Kind: metadata.KindString},
				{Name: "name", Kind: metadata.KindString},
			},
			Relations: []metadata.RelationDef{
				{Name: "thumbnails", Kind: metadata.HasMany, Target: "thumbnail", ForeignKey: "attachment_id", Dependent: metadata.PolicyCascade},
			},
		},
		{
			Name:      "thumbnail",
			Lifecycle: true,
			Columns:   []metadata.ColumnDef{{Name: "attachment_id", Kind: metadata.KindID}},
		},
		{
			Name:      "tagging",
			Lifecycle: true,
			Columns:   []metadata.ColumnDef{{Name: "post_id", Kind: metadata.KindID}},
		},
		{
			Name:      "note",
			Lifecycle: true,
			Columns: []metadata.ColumnDef{
				{Name: "subject_id", Kind: metadata.KindID},
				{Name: "subject_type", Kind: metadata.KindString},
			},
			Relations: []metadata.RelationDef{
				{Name: "subject", Kind: metadata.BelongsTo, ForeignKey: "subject_id", TypeColumn: "subject_type", Dependent: metadata.PolicyDestroy},
			},
		},
		{
			Name:    "folder",
			Columns: []metadata.ColumnDef{{Name: "name", Kind: metadata.KindString}},
			Relations: []metadata.RelationDef{
				{Name: "docs", Kind: metadata.HasMany, Target: "doc", ForeignKey: "folder_id", Dependent: metadata.PolicyCascade},
			},
		},
		{
			Name:      "doc",
			Lifecycle: true,
			Columns:   []metadata.ColumnDef{{Name: "folder_id", Kind: metadata.KindID}},
			Relations: []metadata.RelationDef{
				{Name: "attachments", Kind: metadata.HasMany, Target: "attachment", ForeignKey: "owner_id", TypeColumn: "owner_type", Dependent: metadata.PolicyDestroy},
			},
		},
	}
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, blogSchema()...)
}

func newFixtureWith(t *testing.T, schema ...metadata.TypeDef) *fixture {
	t.Helper()

	reg := metadata.NewRegistry().MustRegister(schema...)
	require.NoError(t, reg.Finalize())

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.New(logger.Nop()),
		now:   time.Date(2024, 1, 10, 12, 0, 0, 123456789, time.UTC),
	}
	svc, err := NewService(Config{
		Registry:  reg,
		Repo:      f.store,
		TxManager: f.store,
		Clock:     instant.ClockFunc(func() time.Time { return f.now }),
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) create(typeName string, fields entity.Fields) *entity.Record {
	f.t.Helper()
	rec := entity.New(typeName, fields)
	require.NoError(f.t, f.svc.Create(f.ctx, rec))
	return rec
}

func (f *fixture) post(title string) *entity.Record {
	return f.create("post", entity.Fields{"title": title, "comments_count": int64(0)})
}

func (f *fixture) comment(post *entity.Record) *entity.Record {
	return f.create("comment", entity.Fields{"post_id": post.ID, "body": "hi"})
}

// reload reads the stored row, whatever its state.
func (f *fixture) reload(rec *entity.Record) *entity.Record {
	f.t.Helper()
	got, err := f.svc.Records(rec.Type).Unscoped().Find(f.ctx, rec.ID)
	require.NoError(f.t, err)
	return got
}

func (f *fixture) exists(rec *entity.Record) bool {
	_, err := f.svc.Records(rec.Type).Unscoped().Find(f.ctx, rec.ID)
	return err == nil
}

func (f *fixture) counter(post *entity.Record) int64 {
	return f.reload(post).Fields.GetInt("comments_count")
}

func (f *fixture) liveComments(post *entity.Record) int64 {
	f.t.Helper()
	n, err := f.svc.Related(post, "comments").Count(f.ctx)
	require.NoError(f.t, err)
	return n
}

func norm(t time.Time) time.Time { return instant.Normalize(t) }
