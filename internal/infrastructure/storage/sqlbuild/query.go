package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/apperror"
	"tombstone/internal/domain"
	"tombstone/internal/domain/filter"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

// Select builds the SELECT for a record query, paginated and ordered.
func (d Dialect) Select(def *metadata.TypeDef, q domain.RecordQuery) (squirrel.SelectBuilder, error) {
	sb, err := d.where(def, q, d.Builder().Select(def.SelectColumns()...).From(def.Table))
	if err != nil {
		return sb, err
	}

	orderBy, err := d.OrderBy(def, q.OrderBy)
	if err != nil {
		return sb, err
	}
	sb = sb.OrderBy(orderBy)

	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		if q.Limit <= 0 && d.Name != "postgres" {
			// sqlite and mysql reject OFFSET without LIMIT
			sb = sb.Limit(1<<63 - 1)
		}
		sb = sb.Offset(uint64(q.Offset))
	}
	return sb, nil
}

// Count builds SELECT COUNT(*) for a record query, ignoring pagination.
func (d Dialect) Count(def *metadata.TypeDef, q domain.RecordQuery) (squirrel.SelectBuilder, error) {
	return d.where(def, q, d.Builder().Select("COUNT(*)").From(def.Table))
}

func (d Dialect) where(def *metadata.TypeDef, q domain.RecordQuery, sb squirrel.SelectBuilder) (squirrel.SelectBuilder, error) {
	sc, err := d.Scope(def, q.Scope)
	if err != nil {
		return sb, err
	}
	if sc != nil {
		sb = sb.Where(sc)
	}

	if len(q.IDs) > 0 {
		ids := make([]any, len(q.IDs))
		for i, v := range q.IDs {
			ids[i], _ = d.codec.encode(metadata.KindID, v)
		}
		sb = sb.Where(squirrel.Eq{metadata.ColumnID: ids})
	}

	if len(q.Match) > 0 {
		eq := squirrel.Eq{}
		for col, v := range q.Match {
			c, ok := def.Column(col)
			if !ok {
				return sb, apperror.NewValidation(fmt.Sprintf("invalid match column: %s", col))
			}
			enc, err := d.codec.encode(c.Kind, v)
			if err != nil {
				return sb, apperror.NewInvalidInput(err.Error()).WithDetail("field", col)
			}
			eq[col] = enc
		}
		sb = sb.Where(eq)
	}

	return d.applyFilters(def, sb, q.Filters)
}

// Scope renders the lifecycle predicate. A nil Sqlizer means no predicate.
func (d Dialect) Scope(def *metadata.TypeDef, sc scope.Scope) (squirrel.Sqlizer, error) {
	if !def.Lifecycle {
		if sc.Mode == scope.Destroyed {
			return nil, apperror.NewLifecycleUnsupported(def.Name, "destroyed scope")
		}
		return nil, nil
	}
	switch sc.Mode {
	case scope.All:
		return nil, nil
	case scope.Destroyed:
		if sc.At != nil {
			at, err := d.codec.encode(metadata.KindTime, *sc.At)
			if err != nil {
				return nil, err
			}
			return squirrel.Eq{metadata.ColumnDestroyedAt: at}, nil
		}
		return squirrel.NotEq{metadata.ColumnDestroyedAt: nil}, nil
	default:
		return squirrel.Eq{metadata.ColumnDestroyedAt: nil}, nil
	}
}

// applyFilters appends user predicates. Columns are whitelisted against the
// type definition.
func (d Dialect) applyFilters(def *metadata.TypeDef, q squirrel.SelectBuilder, items []filter.Item) (squirrel.SelectBuilder, error) {
	for _, item := range items {
		col, ok := def.Column(item.Field)
		if !ok {
			return q, apperror.NewValidation(fmt.Sprintf("invalid filter column: %s", item.Field))
		}
		if err := item.Validate(); err != nil {
			return q, apperror.NewValidation(err.Error()).WithDetail("field", item.Field)
		}

		var val any
		switch item.Operator {
		case filter.IsNull, filter.IsNotNull, filter.Contains, filter.NotContains:
		case filter.InList, filter.NotInList:
			list, err := d.encodeList(col.Kind, item.Value)
			if err != nil {
				return q, apperror.NewInvalidInput(err.Error()).WithDetail("field", item.Field)
			}
			val = list
		default:
			enc, err := d.codec.encode(col.Kind, item.Value)
			if err != nil {
				return q, apperror.NewInvalidInput(err.Error()).WithDetail("field", item.Field)
			}
			val = enc
		}

		switch item.Operator {
		case filter.Equal, filter.InList:
			q = q.Where(squirrel.Eq{item.Field: val})
		case filter.NotEqual, filter.NotInList:
			q = q.Where(squirrel.NotEq{item.Field: val})
		case filter.LessOrEqual:
			q = q.Where(squirrel.LtOrEq{item.Field: val})
		case filter.GreaterOrEqual:
			q = q.Where(squirrel.GtOrEq{item.Field: val})
		case filter.Less:
			q = q.Where(squirrel.Lt{item.Field: val})
		case filter.Greater:
			q = q.Where(squirrel.Gt{item.Field: val})
		case filter.IsNull:
			q = q.Where(squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			q = q.Where(squirrel.NotEq{item.Field: nil})
		case filter.Contains, filter.NotContains:
			q = q.Where(d.contains(item.Field, fmt.Sprintf("%%%v%%", item.Value), item.Operator == filter.NotContains))
		}
	}
	return q, nil
}

func (d Dialect) contains(field, pattern string, negate bool) squirrel.Sqlizer {
	if d.ilike {
		if negate {
			return squirrel.NotILike{field: pattern}
		}
		return squirrel.ILike{field: pattern}
	}
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}
	return squirrel.Expr(fmt.Sprintf("LOWER(%s) %s ?", field, op), strings.ToLower(pattern))
}

func (d Dialect) encodeList(kind metadata.ColumnKind, v any) ([]any, error) {
	var raw []any
	switch l := v.(type) {
	case []any:
		raw = l
	case []string:
		for _, s := range l {
			raw = append(raw, s)
		}
	default:
		raw = []any{v}
	}
	out := make([]any, len(raw))
	for i, r := range raw {
		enc, err := d.codec.encode(kind, r)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

// OrderBy validates a "-field" / "+field" / "field" expression. The default
// is id ascending, which follows insertion order for time-ordered ids.
func (d Dialect) OrderBy(def *metadata.TypeDef, orderBy string) (string, error) {
	if orderBy == "" {
		return metadata.ColumnID + " ASC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !def.HasColumn(field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	if field == metadata.ColumnID {
		return field + " " + direction, nil
	}
	return field + " " + direction + ", " + metadata.ColumnID + " ASC", nil
}
