package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/core/instant"
	"tombstone/internal/domain"
	"tombstone/internal/domain/filter"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

var _ domain.RecordRepository = (*Store)(nil)

// Insert implements domain.RecordRepository.
func (s *Store) Insert(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	return s.write(ctx, OpInsert, def.Table, rec.ID, func(st *state) error {
		t := st.table(def.Table)
		if _, dup := t[rec.ID]; dup {
			return apperror.NewDuplicate(def.Name, "id", rec.ID.String())
		}
		st.seq++
		r := &row{seq: st.seq, fields: pick(def, rec.Fields)}
		if def.Lifecycle {
			r.destroyedAt = instant.NormalizePtr(rec.DestroyedAt)
		}
		t[rec.ID] = r
		return nil
	})
}

// Update implements domain.RecordRepository.
func (s *Store) Update(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	return s.write(ctx, OpUpdate, def.Table, rec.ID, func(st *state) error {
		r, ok := st.table(def.Table)[rec.ID]
		if !ok {
			return apperror.NewNotFound(def.Name, rec.ID.String())
		}
		fields := pick(def, rec.Fields)
		for _, c := range def.Columns {
			if def.CounterColumn(c.Name) {
				fields[c.Name] = r.fields[c.Name]
			}
		}
		r.fields = fields
		return nil
	})
}

// SetDestroyedAt implements domain.RecordRepository.
func (s *Store) SetDestroyedAt(ctx context.Context, def *metadata.TypeDef, recID id.ID, at *time.Time) error {
	if !def.Lifecycle {
		return apperror.NewLifecycleUnsupported(def.Name, "set destroyed_at")
	}
	return s.write(ctx, OpSetDestroyedAt, def.Table, recID, func(st *state) error {
		r, ok := st.table(def.Table)[recID]
		if !ok {
			return apperror.NewNotFound(def.Name, recID.String())
		}
		r.destroyedAt = instant.NormalizePtr(at)
		return nil
	})
}

// Delete implements domain.RecordRepository.
func (s *Store) Delete(ctx context.Context, def *metadata.TypeDef, recID id.ID) error {
	return s.write(ctx, OpDelete, def.Table, recID, func(st *state) error {
		delete(st.table(def.Table), recID)
		return nil
	})
}

// AdjustCounter implements domain.RecordRepository.
func (s *Store) AdjustCounter(ctx context.Context, def *metadata.TypeDef, recID id.ID, column string, delta int) error {
	if !def.HasColumn(column) {
		return fmt.Errorf("counter column %s.%s: %w", def.Table, column, apperror.NewValidation("unknown column"))
	}
	return s.write(ctx, OpAdjustCounter, def.Table, recID, func(st *state) error {
		r, ok := st.table(def.Table)[recID]
		if !ok {
			return nil
		}
		n := r.fields.GetInt(column) + int64(delta)
		if n < 0 {
			n = 0
		}
		r.fields.Set(column, n)
		return nil
	})
}

// Get implements domain.RecordRepository.
func (s *Store) Get(ctx context.Context, def *metadata.TypeDef, recID id.ID, sc scope.Scope) (*entity.Record, error) {
	recs, err := s.List(ctx, def, domain.RecordQuery{Scope: sc, IDs: []id.ID{recID}})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperror.NewNotFound(def.Name, recID.String())
	}
	return recs[0], nil
}

// List implements domain.RecordRepository.
func (s *Store) List(ctx context.Context, def *metadata.TypeDef, q domain.RecordQuery) ([]*entity.Record, error) {
	if err := checkFilters(def, q); err != nil {
		return nil, err
	}

	var out []*entity.Record
	var seqs []int64
	err := s.read(ctx, func(st *state) error {
		for recID, r := range st.tables[def.Table] {
			if !matches(def, q, recID, r) {
				continue
			}
			out = append(out, entity.Loaded(def.Name, recID, r.destroyedAt, r.fields.Clone()))
			seqs = append(seqs, r.seq)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortRecords(out, seqs, q.OrderBy)

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Count implements domain.RecordRepository.
func (s *Store) Count(ctx context.Context, def *metadata.TypeDef, q domain.RecordQuery) (int64, error) {
	q.Limit, q.Offset, q.OrderBy = 0, 0, ""
	recs, err := s.List(ctx, def, q)
	return int64(len(recs)), err
}

func matches(def *metadata.TypeDef, q domain.RecordQuery, recID id.ID, r *row) bool {
	if def.Lifecycle && !q.Scope.Includes(r.destroyedAt) {
		return false
	}
	if !def.Lifecycle && q.Scope.Mode == scope.Destroyed {
		return false
	}
	if len(q.IDs) > 0 && !slices.Contains(q.IDs, recID) {
		return false
	}
	for col, v := range q.Match {
		if !filter.Eq(col, v).Match(value(recID, r, col)) {
			return false
		}
	}
	for _, item := range q.Filters {
		if !item.Match(value(recID, r, item.Field)) {
			return false
		}
	}
	return true
}

func value(recID id.ID, r *row, col string) any {
	switch col {
	case metadata.ColumnID:
		return recID
	case metadata.ColumnDestroyedAt:
		if r.destroyedAt == nil {
			return nil
		}
		return *r.destroyedAt
	}
	return r.fields[col]
}

func checkFilters(def *metadata.TypeDef, q domain.RecordQuery) error {
	for _, item := range q.Filters {
		if !def.HasColumn(item.Field) {
			return apperror.NewValidation(fmt.Sprintf("invalid filter column: %s", item.Field))
		}
		if err := item.Validate(); err != nil {
			return apperror.NewValidation(err.Error())
		}
	}
	return nil
}

func pick(def *metadata.TypeDef, fields entity.Fields) entity.Fields {
	out := make(entity.Fields, len(def.Columns))
	for _, c := range def.Columns {
		out[c.Name] = fields[c.Name]
	}
	return out
}

func sortRecords(recs []*entity.Record, seqs []int64, orderBy string) {
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	field, desc := strings.TrimPrefix(orderBy, "-"), strings.HasPrefix(orderBy, "-")
	slices.SortStableFunc(idx, func(a, b int) int {
		if field != "" {
			va, vb := sortValue(recs[a], field), sortValue(recs[b], field)
			if c := compareValues(va, vb); c != 0 {
				if desc {
					return -c
				}
				return c
			}
		}
		return int(seqs[a] - seqs[b])
	})
	sorted := make([]*entity.Record, len(recs))
	for i, j := range idx {
		sorted[i] = recs[j]
	}
	copy(recs, sorted)
}

func sortValue(r *entity.Record, field string) any {
	switch field {
	case metadata.ColumnID:
		return r.ID.String()
	case metadata.ColumnDestroyedAt:
		if r.DestroyedAt == nil {
			return nil
		}
		return *r.DestroyedAt
	}
	return r.Fields[field]
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if filter.Eq("", b).Match(a) {
		return 0
	}
	if (filter.Item{Operator: filter.Less, Value: b}).Match(a) {
		return -1
	}
	return 1
}
