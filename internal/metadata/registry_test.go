package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
)

func blogTypes() []TypeDef {
	return []TypeDef{
		{
			Name:      "post",
			Lifecycle: true,
			Columns: []ColumnDef{
				{Name: "title", Kind: KindString},
				{Name: "comments_count", Kind: KindInteger},
			},
			Relations: []RelationDef{
				{Name: "comments", Kind: HasMany, Target: "comment", ForeignKey: "post_id", Dependent: PolicyDestroy, CounterCache: "comments_count"},
				{Name: "attachments", Kind: HasMany, Target: "attachment", ForeignKey: "owner_id", TypeColumn: "owner_type", Dependent: PolicyDestroy},
			},
		},
		{
			Name:      "comment",
			Lifecycle: true,
			Columns: []ColumnDef{
				{Name: "post_id", Kind: KindID},
				{Name: "body", Kind: KindString},
			},
			Relations: []RelationDef{
				{Name: "post", Kind: BelongsTo, Target: "post", ForeignKey: "post_id", CounterCache: "comments_count"},
			},
		},
		{
			Name: "attachment",
			Columns: []ColumnDef{
				{Name: "owner_id", Kind: KindID},
				{Name: "owner_type", Kind: KindString},
			},
		},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry().MustRegister(blogTypes()...)
	require.NoError(t, reg.Finalize())
	assert.True(t, reg.Finalized())

	post, err := reg.Lookup("post")
	require.NoError(t, err)
	assert.Equal(t, "post", post.Table)
	assert.Equal(t, []string{"id", "destroyed_at", "title", "comments_count"}, post.SelectColumns())

	att, _ := reg.Get("attachment")
	assert.Equal(t, []string{"id", "owner_id", "owner_type"}, att.SelectColumns())

	_, err = reg.Lookup("nope")
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownType))

	names := []string{}
	for _, d := range reg.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"post", "comment", "attachment"}, names)
}

func TestRegistry_CounterLinkInverseSkipped(t *testing.T) {
	reg := NewRegistry().MustRegister(blogTypes()...)
	require.NoError(t, reg.Finalize())

	links := reg.CounterLinks("comment")
	require.Len(t, links, 1)
	assert.Equal(t, "comment.post", links[0].Relation)
	assert.Equal(t, "post", links[0].OwnerType)
	assert.Equal(t, "comments_count", links[0].Column)
}

func TestRegistry_CounterColumnsMarkedOnOwner(t *testing.T) {
	reg := NewRegistry().MustRegister(blogTypes()...)
	post, _ := reg.Get("post")
	assert.False(t, post.CounterColumn("comments_count"))

	require.NoError(t, reg.Finalize())
	assert.True(t, post.CounterColumn("comments_count"))
	assert.False(t, post.CounterColumn("title"))

	comment, _ := reg.Get("comment")
	assert.False(t, comment.CounterColumn("comments_count"))
}

func TestRegistry_CounterLinkFromHasManyOnly(t *testing.T) {
	types := blogTypes()
	types[1].Relations = nil
	reg := NewRegistry().MustRegister(types...)
	require.NoError(t, reg.Finalize())

	links := reg.CounterLinks("comment")
	require.Len(t, links, 1)
	assert.Equal(t, "post.comments", links[0].Relation)
	assert.Equal(t, "post_id", links[0].ForeignKey)
}

func TestRegistry_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]TypeDef) []TypeDef
	}{
		{"unknown target", func(ts []TypeDef) []TypeDef {
			ts[0].Relations[0].Target = "ghost"
			return ts
		}},
		{"missing foreign key column", func(ts []TypeDef) []TypeDef {
			ts[0].Relations[0].ForeignKey = "article_id"
			return ts
		}},
		{"explicit cascade to non-lifecycle", func(ts []TypeDef) []TypeDef {
			ts[0].Relations[1].Dependent = PolicyCascade
			return ts
		}},
		{"counter cache not integer", func(ts []TypeDef) []TypeDef {
			ts[0].Relations[0].CounterCache = "title"
			ts[1].Relations = nil
			return ts
		}},
		{"polymorphic belongs_to without type column", func(ts []TypeDef) []TypeDef {
			ts[2].Relations = []RelationDef{{Name: "owner", Kind: BelongsTo, ForeignKey: "owner_id"}}
			return ts
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry().MustRegister(tt.mutate(blogTypes())...)
			assert.Error(t, reg.Finalize())
		})
	}
}

func TestRegistry_RegisterRejects(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(TypeDef{Name: "Bad Name"}))
	assert.Error(t, reg.Register(TypeDef{Name: "x", Columns: []ColumnDef{{Name: "destroyed_at", Kind: KindTime}}}))
	assert.Error(t, reg.Register(TypeDef{Name: "x", Columns: []ColumnDef{{Name: "a", Kind: "blob"}}}))
	assert.Error(t, reg.Register(TypeDef{Name: "x", Relations: []RelationDef{{Name: "r", Kind: HasMany, ForeignKey: "x_id"}}}))

	require.NoError(t, reg.Register(TypeDef{Name: "x"}))
	assert.Error(t, reg.Register(TypeDef{Name: "x"}))
}

func TestRelationResolve(t *testing.T) {
	life := &TypeDef{Name: "comment", Lifecycle: true}
	plain := &TypeDef{Name: "attachment"}

	tests := []struct {
		name   string
		policy Policy
		target *TypeDef
		purge  bool
		want   Action
		ok     bool
	}{
		{"none", PolicyNone, life, false, ActionSkip, true},
		{"empty is none", "", life, true, ActionSkip, true},
		{"destroy to lifecycle", PolicyDestroy, life, false, ActionCascade, true},
		{"destroy to plain", PolicyDestroy, plain, false, ActionHardDelete, true},
		{"cascade to lifecycle", PolicyCascade, life, false, ActionCascade, true},
		{"cascade to plain", PolicyCascade, plain, false, ActionSkip, false},
		{"hard delete", PolicyHardDelete, life, false, ActionHardDelete, true},
		{"purge forces hard delete", PolicyCascade, life, true, ActionHardDelete, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := RelationDef{Dependent: tt.policy}
			got, ok := rel.Resolve(tt.target, tt.purge)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
