package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Match evaluates the item against a field value held in memory.
// Numbers are compared as decimals, instants chronologically, everything else by string form.
func (i Item) Match(v any) bool {
	switch i.Operator {
	case IsNull:
		return v == nil
	case IsNotNull:
		return v != nil
	case InList:
		return inList(v, i.Value)
	case NotInList:
		return v != nil && !inList(v, i.Value)
	case Contains:
		return v != nil && strings.Contains(strings.ToLower(str(v)), strings.ToLower(str(i.Value)))
	case NotContains:
		return v != nil && !strings.Contains(strings.ToLower(str(v)), strings.ToLower(str(i.Value)))
	}
	if v == nil {
		return false
	}
	c, ok := compare(v, i.Value)
	if !ok {
		return false
	}
	switch i.Operator {
	case Equal:
		return c == 0
	case NotEqual:
		return c != 0
	case Less:
		return c < 0
	case LessOrEqual:
		return c <= 0
	case Greater:
		return c > 0
	case GreaterOrEqual:
		return c >= 0
	}
	return false
}

func inList(v, list any) bool {
	var items []any
	switch l := list.(type) {
	case []any:
		items = l
	case []string:
		for _, s := range l {
			items = append(items, s)
		}
	}
	for _, it := range items {
		if c, ok := compare(v, it); ok && c == 0 {
			return true
		}
	}
	return false
}

func compare(a, b any) (int, bool) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	da, aok := toDecimal(a)
	db, bok := toDecimal(b)
	if aok && bok {
		return da.Cmp(db), true
	}
	return strings.Compare(str(a), str(b)), true
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		p, err := time.Parse(time.RFC3339Nano, t)
		return p, err == nil
	}
	return time.Time{}, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case decimal.Decimal:
		return n, true
	case fmt.Stringer:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}
	return decimal.Zero, false
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
