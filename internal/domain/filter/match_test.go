package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemMatch(t *testing.T) {
	tests := []struct {
		name  string
		item  Item
		value any
		want  bool
	}{
		{"eq string", Eq("title", "hello"), "hello", true},
		{"eq string mismatch", Eq("title", "hello"), "bye", false},
		{"eq number across types", Eq("votes", 3), int64(3), true},
		{"eq json number", Eq("votes", 3), json.Number("3"), true},
		{"gt", Item{Field: "votes", Operator: Greater, Value: 2}, 3, true},
		{"lte", Item{Field: "votes", Operator: LessOrEqual, Value: 2}, 3, false},
		{"in", Item{Field: "kind", Operator: InList, Value: []any{"a", "b"}}, "b", true},
		{"nin", Item{Field: "kind", Operator: NotInList, Value: []string{"a"}}, "b", true},
		{"contains case-insensitive", Item{Field: "title", Operator: Contains, Value: "ELL"}, "hello", true},
		{"null", Item{Field: "note", Operator: IsNull}, nil, true},
		{"not null", Item{Field: "note", Operator: IsNotNull}, nil, false},
		{"comparison against nil", Eq("title", "x"), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Match(tt.value))
		})
	}
}

func TestItemValidate(t *testing.T) {
	assert.NoError(t, Eq("a", 1).Validate())
	assert.NoError(t, Item{Field: "a", Operator: IsNull}.Validate())
	assert.Error(t, Item{Field: "a", Operator: "like", Value: 1}.Validate())
	assert.Error(t, Item{Field: "a", Operator: InList, Value: "x"}.Validate())
	assert.Error(t, Item{Operator: Equal, Value: 1}.Validate())
}
