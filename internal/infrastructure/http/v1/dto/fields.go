package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/metadata"
)

// ToFields converts decoded JSON values to the engine representation of
// each declared column. Unknown keys are passed through so the engine's
// validation reports them.
func ToFields(def *metadata.TypeDef, raw map[string]any) (entity.Fields, error) {
	out := make(entity.Fields, len(raw))
	for name, v := range raw {
		col, ok := def.Column(name)
		if !ok || v == nil {
			out[name] = v
			continue
		}
		conv, err := convert(col.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = conv
	}
	return out, nil
}

func convert(kind metadata.ColumnKind, v any) (any, error) {
	switch kind {
	case metadata.KindID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected id string, got %T", v)
		}
		return id.Parse(s)
	case metadata.KindInteger:
		switch x := v.(type) {
		case json.Number:
			return x.Int64()
		case float64:
			if x != float64(int64(x)) {
				return nil, fmt.Errorf("expected integer, got %v", x)
			}
			return int64(x), nil
		}
		return nil, fmt.Errorf("expected integer, got %T", v)
	case metadata.KindDecimal:
		switch x := v.(type) {
		case json.Number:
			return decimal.NewFromString(x.String())
		case string:
			return decimal.NewFromString(x)
		case float64:
			return decimal.NewFromFloat(x), nil
		}
		return nil, fmt.Errorf("expected decimal, got %T", v)
	case metadata.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return b, nil
	case metadata.KindTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected RFC3339 time, got %T", v)
		}
		return time.Parse(time.RFC3339Nano, s)
	case metadata.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	}
	return v, nil
}
