package entity

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/id"
)

func TestFieldsScanPreservesPrecision(t *testing.T) {
	var f Fields
	require.NoError(t, f.Scan([]byte(`{"price": 12345678901234567.89, "count": 3}`)))

	assert.Equal(t, "12345678901234567.89", f.GetDecimal("price").String())
	assert.Equal(t, int64(3), f.GetInt("count"))
	_, isNumber := f["count"].(json.Number)
	assert.True(t, isNumber)
}

func TestFieldsGetters(t *testing.T) {
	ref := id.New()
	f := Fields{
		"post_id": ref.String(),
		"raw_id":  [16]byte(ref),
		"n":       []byte("42"),
		"amount":  decimal.RequireFromString("1.50"),
		"flag":    int64(1),
		"nothing": nil,
	}

	got, ok := f.GetID("post_id")
	require.True(t, ok)
	assert.Equal(t, ref, got)

	got, ok = f.GetID("raw_id")
	require.True(t, ok)
	assert.Equal(t, ref, got)

	_, ok = f.GetID("nothing")
	assert.False(t, ok)

	assert.Equal(t, int64(42), f.GetInt("n"))
	assert.True(t, f.GetDecimal("amount").Equal(decimal.RequireFromString("1.5")))
	assert.True(t, f.GetBool("flag"))
	assert.True(t, f.Has("nothing"))
	assert.False(t, f.Has("missing"))
}

func TestFieldsCloneIsShallowCopy(t *testing.T) {
	f := Fields{"a": 1}
	c := f.Clone()
	c["a"] = 2
	assert.Equal(t, 1, f["a"])

	var nilFields Fields
	assert.Nil(t, nilFields.Clone())
	nilFields.Set("x", 1)
	assert.Equal(t, 1, nilFields["x"])
}
