// Package filter describes user predicates that are AND-composed with the lifecycle scope.
package filter

import "fmt"

// ComparisonType is the comparison operator of a filter item.
type ComparisonType string

const (
	Equal          ComparisonType = "eq"
	NotEqual       ComparisonType = "neq"
	Less           ComparisonType = "lt"
	LessOrEqual    ComparisonType = "lte"
	Greater        ComparisonType = "gt"
	GreaterOrEqual ComparisonType = "gte"
	InList         ComparisonType = "in"
	NotInList      ComparisonType = "nin"
	Contains       ComparisonType = "contains"  // case-insensitive substring
	NotContains    ComparisonType = "ncontains" // negated Contains

	IsNull    ComparisonType = "null"
	IsNotNull ComparisonType = "not_null"
)

// Item is one predicate of a query.
type Item struct {
	Field    string         `json:"field"` // column name (snake_case)
	Operator ComparisonType `json:"operator"`
	Value    any            `json:"value"`
}

// Eq is shorthand for an equality item.
func Eq(field string, value any) Item {
	return Item{Field: field, Operator: Equal, Value: value}
}

// Validate checks the operator and value shape.
func (i Item) Validate() error {
	if i.Field == "" {
		return fmt.Errorf("filter: empty field")
	}
	switch i.Operator {
	case Equal, NotEqual, Less, LessOrEqual, Greater, GreaterOrEqual, Contains, NotContains:
		if i.Value == nil {
			return fmt.Errorf("filter %s %s: value required", i.Field, i.Operator)
		}
	case InList, NotInList:
		if _, ok := i.Value.([]any); !ok {
			if _, ok := i.Value.([]string); !ok {
				return fmt.Errorf("filter %s %s: list value required", i.Field, i.Operator)
			}
		}
	case IsNull, IsNotNull:
	default:
		return fmt.Errorf("filter %s: unknown operator %q", i.Field, i.Operator)
	}
	return nil
}
