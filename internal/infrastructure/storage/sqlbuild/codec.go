package sqlbuild

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tombstone/internal/core/id"
	"tombstone/internal/core/instant"
	"tombstone/internal/metadata"
)

// codec converts between engine values and column values.
//
// Postgres stores ids as UUID and instants as TIMESTAMPTZ. Engines without
// those types store ids as text and instants as microseconds since the epoch
// in a BIGINT, which keeps exact-instant matching free of string formatting.
type codec struct {
	textIDs    bool
	microTimes bool
}

// encode converts v for a column of the given kind. nil stays nil.
func (c codec) encode(kind metadata.ColumnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case metadata.KindID:
		rid, ok := id.FromAny(v)
		if !ok {
			return nil, fmt.Errorf("invalid id value %v", v)
		}
		if c.textIDs {
			return rid.String(), nil
		}
		return rid, nil
	case metadata.KindTime:
		t, ok := toTime(v)
		if !ok {
			return nil, fmt.Errorf("invalid time value %v", v)
		}
		if c.microTimes {
			return instant.ToMicros(t), nil
		}
		return instant.Normalize(t), nil
	case metadata.KindInteger:
		n, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("invalid integer value %v", v)
		}
		return n, nil
	case metadata.KindDecimal:
		d, ok := toDecimal(v)
		if !ok {
			return nil, fmt.Errorf("invalid decimal value %v", v)
		}
		return d.String(), nil
	case metadata.KindBoolean:
		b, ok := toBool(v)
		if !ok {
			return nil, fmt.Errorf("invalid boolean value %v", v)
		}
		return b, nil
	case metadata.KindJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return string(raw), nil
	default:
		return toString(v), nil
	}
}

// decode converts a scanned column value into the engine representation.
func (c codec) decode(kind metadata.ColumnKind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if v, ok := raw.(driver.Valuer); ok {
		if _, isID := raw.(id.ID); !isID {
			dv, err := v.Value()
			if err != nil {
				return nil, err
			}
			raw = dv
			if raw == nil {
				return nil, nil
			}
		}
	}

	switch kind {
	case metadata.KindID:
		rid, ok := id.FromAny(raw)
		if !ok {
			return nil, fmt.Errorf("invalid stored id %v", raw)
		}
		return rid, nil
	case metadata.KindTime:
		t, ok := toTime(raw)
		if !ok {
			return nil, fmt.Errorf("invalid stored time %v", raw)
		}
		return instant.Normalize(t), nil
	case metadata.KindInteger:
		n, ok := toInt(raw)
		if !ok {
			return nil, fmt.Errorf("invalid stored integer %v", raw)
		}
		return n, nil
	case metadata.KindDecimal:
		d, ok := toDecimal(raw)
		if !ok {
			return nil, fmt.Errorf("invalid stored decimal %v", raw)
		}
		return d, nil
	case metadata.KindBoolean:
		b, ok := toBool(raw)
		if !ok {
			return nil, fmt.Errorf("invalid stored boolean %v", raw)
		}
		return b, nil
	case metadata.KindJSON:
		var text []byte
		switch v := raw.(type) {
		case string:
			text = []byte(v)
		case []byte:
			text = v
		default:
			return v, nil
		}
		var out any
		if err := json.Unmarshal(text, &out); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return out, nil
	default:
		return toString(raw), nil
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), x == float64(int64(x))
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(string(x))
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	if n, ok := toInt(v); ok {
		return decimal.NewFromInt(n), true
	}
	return decimal.Zero, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case []byte:
		b, err := strconv.ParseBool(string(x))
		return b, err == nil
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	}
	if n, ok := toInt(v); ok {
		return n != 0, true
	}
	return false, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t, true
		}
	}
	if us, ok := toInt(v); ok {
		return instant.FromMicros(us), true
	}
	return time.Time{}, false
}
