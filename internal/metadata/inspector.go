package metadata

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tombstone/internal/core/id"
)

// Inspect derives a TypeDef from a struct with db tags.
// A field tagged db:"destroyed_at" marks the type as lifecycle-enabled;
// db:"id" is implicit and skipped. Relations are appended by the caller.
func Inspect(model any, name string, relations ...RelationDef) TypeDef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if name == "" {
		name = toSnake(t.Name())
	}

	def := TypeDef{Name: name, Table: name, Relations: relations}
	inspectStruct(t, &def)
	return def
}

func inspectStruct(t reflect.Type, def *TypeDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Embedded structs are flattened, exported or not
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			inspectStruct(field.Type, def)
			continue
		}

		if field.PkgPath != "" { // unexported
			continue
		}

		col := dbName(field)
		switch col {
		case "", "-", ColumnID:
			continue
		case ColumnDestroyedAt:
			def.Lifecycle = true
			continue
		}

		def.Columns = append(def.Columns, ColumnDef{Name: col, Kind: kindOf(field.Type)})
	}
}

var (
	idType      = reflect.TypeOf(id.ID{})
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	rawType     = reflect.TypeOf(json.RawMessage{})
)

func kindOf(t reflect.Type) ColumnKind {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t {
	case idType:
		return KindID
	case timeType:
		return KindTime
	case decimalType:
		return KindDecimal
	case rawType:
		return KindJSON
	}

	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger
	case reflect.Float32, reflect.Float64:
		return KindDecimal
	case reflect.Bool:
		return KindBoolean
	case reflect.Map, reflect.Slice, reflect.Struct:
		return KindJSON
	}
	return KindString
}

func dbName(field reflect.StructField) string {
	tag := field.Tag.Get("db")
	if tag == "" {
		return toSnake(field.Name)
	}
	return strings.Split(tag, ",")[0]
}

func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
