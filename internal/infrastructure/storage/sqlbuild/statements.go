package sqlbuild

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/core/instant"
	"tombstone/internal/metadata"
)

// Insert builds the INSERT for rec. Only declared columns are written.
func (d Dialect) Insert(def *metadata.TypeDef, rec *entity.Record) (squirrel.InsertBuilder, error) {
	data, err := d.columns(def, rec.Fields, true)
	if err != nil {
		return squirrel.InsertBuilder{}, err
	}
	data[metadata.ColumnID], _ = d.codec.encode(metadata.KindID, rec.ID)
	if def.Lifecycle {
		data[metadata.ColumnDestroyedAt], err = d.encodeInstant(rec.DestroyedAt)
		if err != nil {
			return squirrel.InsertBuilder{}, err
		}
	}
	return d.Builder().Insert(def.Table).SetMap(data), nil
}

// Update builds the UPDATE of rec's data columns. destroyed_at and counter
// cache columns are untouched.
func (d Dialect) Update(def *metadata.TypeDef, rec *entity.Record) (squirrel.UpdateBuilder, error) {
	data, err := d.columns(def, rec.Fields, false)
	if err != nil {
		return squirrel.UpdateBuilder{}, err
	}
	ub := d.Builder().Update(def.Table).Where(d.byID(rec.ID))
	if len(data) == 0 {
		// keep the statement valid for types without data columns
		return ub.Set(metadata.ColumnID, squirrel.Expr(metadata.ColumnID)), nil
	}
	return ub.SetMap(data), nil
}

// SetDestroyedAt builds the UPDATE of destroyed_at alone.
func (d Dialect) SetDestroyedAt(def *metadata.TypeDef, recID id.ID, at *time.Time) (squirrel.UpdateBuilder, error) {
	v, err := d.encodeInstant(at)
	if err != nil {
		return squirrel.UpdateBuilder{}, err
	}
	return d.Builder().Update(def.Table).
		Set(metadata.ColumnDestroyedAt, v).
		Where(d.byID(recID)), nil
}

// Delete builds the hard DELETE of one row.
func (d Dialect) Delete(def *metadata.TypeDef, recID id.ID) squirrel.DeleteBuilder {
	return d.Builder().Delete(def.Table).Where(d.byID(recID))
}

// AdjustCounter builds an UPDATE that moves a counter cache by delta,
// never below zero.
func (d Dialect) AdjustCounter(def *metadata.TypeDef, recID id.ID, column string, delta int) squirrel.UpdateBuilder {
	expr := fmt.Sprintf("CASE WHEN COALESCE(%[1]s, 0) + ? < 0 THEN 0 ELSE COALESCE(%[1]s, 0) + ? END", column)
	return d.Builder().Update(def.Table).
		Set(column, squirrel.Expr(expr, delta, delta)).
		Where(d.byID(recID))
}

func (d Dialect) byID(recID id.ID) squirrel.Eq {
	v, _ := d.codec.encode(metadata.KindID, recID)
	return squirrel.Eq{metadata.ColumnID: v}
}

func (d Dialect) columns(def *metadata.TypeDef, fields entity.Fields, counters bool) (map[string]any, error) {
	data := make(map[string]any, len(def.Columns)+2)
	for _, c := range def.Columns {
		if !counters && def.CounterColumn(c.Name) {
			continue
		}
		v, err := d.codec.encode(c.Kind, fields[c.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, c.Name, err)
		}
		data[c.Name] = v
	}
	return data, nil
}

func (d Dialect) encodeInstant(at *time.Time) (any, error) {
	if at == nil {
		return nil, nil
	}
	return d.codec.encode(metadata.KindTime, instant.Normalize(*at))
}

// Record converts a scanned row into a loaded record.
func (d Dialect) Record(def *metadata.TypeDef, row map[string]any) (*entity.Record, error) {
	rawID, err := d.codec.decode(metadata.KindID, row[metadata.ColumnID])
	if err != nil {
		return nil, fmt.Errorf("%s.id: %w", def.Name, err)
	}
	recID, ok := rawID.(id.ID)
	if !ok {
		return nil, fmt.Errorf("%s: row without id", def.Name)
	}

	var destroyedAt *time.Time
	if def.Lifecycle {
		v, err := d.codec.decode(metadata.KindTime, row[metadata.ColumnDestroyedAt])
		if err != nil {
			return nil, fmt.Errorf("%s.destroyed_at: %w", def.Name, err)
		}
		if t, ok := v.(time.Time); ok {
			destroyedAt = &t
		}
	}

	fields := make(entity.Fields, len(def.Columns))
	for _, c := range def.Columns {
		v, err := d.codec.decode(c.Kind, row[c.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, c.Name, err)
		}
		fields[c.Name] = v
	}
	return entity.Loaded(def.Name, recID, destroyedAt, fields), nil
}

// Encode converts a value for a column of the given kind. Exposed for
// adapters that write outside the builders.
func (d Dialect) Encode(kind metadata.ColumnKind, v any) (any, error) {
	return d.codec.encode(kind, v)
}
