package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain"
	"tombstone/internal/domain/filter"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

// Query reads records of one type. Destroyed records are hidden unless
// Unscoped, Destroyed or DestroyedAt is called.
type Query struct {
	s        *Service
	typeName string
	q        domain.RecordQuery
	empty    bool
	err      error
}

// Records starts a query on a type.
func (s *Service) Records(typeName string) *Query {
	return &Query{s: s, typeName: typeName}
}

// Related starts a query on the members of owner's relation. The default
// scope applies unless the relation is declared with_destroyed.
func (s *Service) Related(owner *entity.Record, relation string) *Query {
	q := &Query{s: s}

	def, err := s.lookup(owner.Type)
	if err != nil {
		q.err = err
		return q
	}
	rel, ok := def.Relation(relation)
	if !ok {
		q.err = apperror.NewNotFound("relation", owner.Type+"."+relation)
		return q
	}
	if rel.WithDestroyed {
		q.q.Scope = scope.Unscoped()
	}

	if rel.Kind == metadata.BelongsTo {
		target, err := s.target(owner, rel)
		if err != nil {
			q.err = err
			return q
		}
		fk, ok := owner.Fields.GetID(rel.ForeignKey)
		if target == nil || !ok {
			q.typeName, q.empty = rel.Target, true
			return q
		}
		q.typeName = target.Name
		q.q.IDs = []id.ID{fk}
		return q
	}

	q.typeName = rel.Target
	q.q.Match = map[string]any{rel.ForeignKey: owner.ID}
	if rel.TypeColumn != "" {
		q.q.Match[rel.TypeColumn] = owner.Type
	}
	return q
}

// Where adds predicates, AND-composed with the scope.
func (q *Query) Where(items ...filter.Item) *Query {
	q.q.Filters = append(q.q.Filters, items...)
	return q
}

// Destroyed restricts the query to destroyed records.
func (q *Query) Destroyed() *Query {
	q.q.Scope = scope.OnlyDestroyed()
	return q
}

// DestroyedAt restricts the query to records destroyed at exactly t.
func (q *Query) DestroyedAt(t time.Time) *Query {
	q.q.Scope = scope.DestroyedAt(t)
	return q
}

// Unscoped includes destroyed records.
func (q *Query) Unscoped() *Query {
	q.q.Scope = scope.Unscoped()
	return q
}

// Scope replaces the lifecycle scope.
func (q *Query) Scope(sc scope.Scope) *Query {
	q.q.Scope = sc
	return q
}

// OrderBy sorts by a column; a leading "-" sorts descending.
func (q *Query) OrderBy(orderBy string) *Query {
	q.q.OrderBy = orderBy
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	q.q.Limit = n
	return q
}

// Offset skips rows.
func (q *Query) Offset(n int) *Query {
	q.q.Offset = n
	return q
}

func (q *Query) def() (*metadata.TypeDef, error) {
	if q.err != nil {
		return nil, q.err
	}
	def, err := q.s.lookup(q.typeName)
	if err != nil {
		return nil, err
	}
	if !def.Lifecycle && q.q.Scope.Mode == scope.Destroyed {
		return nil, apperror.NewLifecycleUnsupported(def.Name, "destroyed scope")
	}
	return def, nil
}

// All returns every matching record.
func (q *Query) All(ctx context.Context) ([]*entity.Record, error) {
	def, err := q.def()
	if err != nil || q.empty {
		return nil, err
	}
	return q.s.repo.List(ctx, def, q.q)
}

// First returns the first matching record or NOT_FOUND.
func (q *Query) First(ctx context.Context) (*entity.Record, error) {
	def, err := q.def()
	if err != nil {
		return nil, err
	}
	if q.empty {
		return nil, apperror.NewNotFound(def.Name, nil)
	}
	qq := q.q
	qq.Limit = 1
	recs, err := q.s.repo.List(ctx, def, qq)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperror.NewNotFound(def.Name, nil)
	}
	return recs[0], nil
}

// Find returns the record with the given id if the query can see it.
func (q *Query) Find(ctx context.Context, recID id.ID) (*entity.Record, error) {
	def, err := q.def()
	if err != nil {
		return nil, err
	}
	if q.empty || (len(q.q.IDs) > 0 && !slices.Contains(q.q.IDs, recID)) {
		return nil, apperror.NewNotFound(def.Name, recID.String())
	}
	if len(q.q.Match) == 0 && len(q.q.Filters) == 0 {
		return q.s.repo.Get(ctx, def, recID, q.q.Scope)
	}
	qq := q.q
	qq.IDs = []id.ID{recID}
	recs, err := q.s.repo.List(ctx, def, qq)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperror.NewNotFound(def.Name, recID.String())
	}
	return recs[0], nil
}

// Count returns the number of matching records.
func (q *Query) Count(ctx context.Context) (int64, error) {
	def, err := q.def()
	if err != nil || q.empty {
		return 0, err
	}
	return q.s.repo.Count(ctx, def, q.q)
}

// List returns one page of matching records with the total count.
func (q *Query) List(ctx context.Context) (domain.ListResult[*entity.Record], error) {
	def, err := q.def()
	if err != nil {
		return domain.ListResult[*entity.Record]{}, err
	}
	qq := q.q
	if qq.Limit <= 0 {
		qq.Limit = domain.DefaultLimit
	}
	res := domain.ListResult[*entity.Record]{Items: []*entity.Record{}, Limit: qq.Limit, Offset: qq.Offset}
	if q.empty {
		return res, nil
	}

	total, err := q.s.repo.Count(ctx, def, qq)
	if err != nil {
		return res, fmt.Errorf("count %s: %w", def.Name, err)
	}
	items, err := q.s.repo.List(ctx, def, qq)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", def.Name, err)
	}
	if items != nil {
		res.Items = items
	}
	res.TotalCount = total
	return res, nil
}
