package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludes(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(-24 * time.Hour)

	tests := []struct {
		name  string
		scope Scope
		at    *time.Time
		want  bool
	}{
		{"default hides destroyed", Default(), &t1, false},
		{"default shows active", Default(), nil, true},
		{"unscoped shows destroyed", Unscoped(), &t1, true},
		{"unscoped shows active", Unscoped(), nil, true},
		{"destroyed hides active", OnlyDestroyed(), nil, false},
		{"destroyed shows any instant", OnlyDestroyed(), &t2, true},
		{"destroyed at exact instant", DestroyedAt(t1), &t1, true},
		{"destroyed at other instant", DestroyedAt(t1), &t2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Includes(tt.at))
		})
	}
}

func TestZeroValueIsDefault(t *testing.T) {
	var s Scope
	assert.Equal(t, Default(), s)
	assert.Equal(t, "active", s.String())
}

func TestParse(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	s, err := Parse("destroyed", &at)
	require.NoError(t, err)
	assert.Equal(t, Destroyed, s.Mode)
	require.NotNil(t, s.At)
	assert.True(t, s.At.Equal(at))

	s, err = Parse("all", nil)
	require.NoError(t, err)
	assert.Equal(t, All, s.Mode)

	_, err = Parse("active", &at)
	assert.Error(t, err)

	_, err = Parse("gone", nil)
	assert.Error(t, err)
}
