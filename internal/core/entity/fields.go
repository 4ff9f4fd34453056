// Package entity provides the record model shared by the lifecycle engine and the stores.
package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tombstone/internal/core/id"
)

// Fields holds the column values of a record other than id and destroyed_at.
// Implements sql.Scanner and driver.Valuer so a whole field set can travel as JSON
// (audit entries, outbox payloads).
//
// Uses json.Number to preserve numeric precision: the default decoder turns
// numbers into float64 and loses digits for decimals and counters.
type Fields map[string]any

// Scan implements sql.Scanner.
func (f *Fields) Scan(src any) error {
	if src == nil {
		*f = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Fields: %T", src)
	}

	if len(source) == 0 {
		*f = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(source))
	decoder.UseNumber()

	var result map[string]any
	if err := decoder.Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Fields: %w", err)
	}

	*f = result
	return nil
}

// Value implements driver.Valuer.
func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// --- Type-safe getters ---

// GetString returns string value or empty string if not found/wrong type.
func (f Fields) GetString(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// GetInt returns int64 value, handling json.Number and driver integer widths.
func (f Fields) GetInt(key string) int64 {
	switch v := f[key].(type) {
	case json.Number:
		i, _ := v.Int64()
		return i
	case float64:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case []byte:
		i, _ := strconv.ParseInt(string(v), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	}
	return 0
}

// GetDecimal returns decimal.Decimal value with full precision.
func (f Fields) GetDecimal(key string) decimal.Decimal {
	switch v := f[key].(type) {
	case decimal.Decimal:
		return v
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	}
	return decimal.Zero
}

// GetBool returns boolean value.
func (f Fields) GetBool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	}
	return false
}

// GetID returns a reference column as an ID.
func (f Fields) GetID(key string) (id.ID, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return id.ID{}, false
	}
	ref, ok := id.FromAny(v)
	if !ok || id.IsNil(ref) {
		return id.ID{}, false
	}
	return ref, true
}

// GetTime returns a time column.
func (f Fields) GetTime(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	}
	return time.Time{}, false
}

// Has checks if key exists (including nil values).
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Set adds or updates a value. Returns self for chaining.
func (f *Fields) Set(key string, value any) Fields {
	if *f == nil {
		*f = make(Fields)
	}
	(*f)[key] = value
	return *f
}

// Clone creates a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	result := make(Fields, len(f))
	for k, v := range f {
		result[k] = v
	}
	return result
}
