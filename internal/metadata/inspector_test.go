package metadata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/id"
)

type lifecycleColumns struct {
	ID          id.ID      `db:"id"`
	DestroyedAt *time.Time `db:"destroyed_at"`
}

type Audited struct {
	CreatedBy string `db:"created_by"`
}

type lineItem struct {
	lifecycleColumns
	Audited
	InvoiceID id.ID `db:"invoice_id"`
	Qty       int   `db:"qty"`
}

type invoice struct {
	lifecycleColumns
	CustomerID id.ID           `db:"customer_id"`
	Total      decimal.Decimal `db:"total"`
	LineCount  int             `db:"line_count"`
	Paid       bool
	IssuedAt   time.Time `db:"issued_at"`
	Meta       map[string]any
	internal   string
}

func TestInspect(t *testing.T) {
	def := Inspect(&invoice{}, "")

	assert.Equal(t, "invoice", def.Name)
	assert.True(t, def.Lifecycle)
	assert.Equal(t, []ColumnDef{
		{Name: "customer_id", Kind: KindID},
		{Name: "total", Kind: KindDecimal},
		{Name: "line_count", Kind: KindInteger},
		{Name: "paid", Kind: KindBoolean},
		{Name: "issued_at", Kind: KindTime},
		{Name: "meta", Kind: KindJSON},
	}, def.Columns)
	_ = invoice{}.internal
}

func TestInspect_UnexportedEmbeddedStruct(t *testing.T) {
	def := Inspect(lineItem{}, "")

	assert.Equal(t, "line_item", def.Name)
	assert.True(t, def.Lifecycle, "destroyed_at comes from an unexported embedded struct")
	assert.Equal(t, []ColumnDef{
		{Name: "created_by", Kind: KindString},
		{Name: "invoice_id", Kind: KindID},
		{Name: "qty", Kind: KindInteger},
	}, def.Columns)
}

func TestRegistry_RegisterModel(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterModel(&invoice{}, ""))
	require.NoError(t, reg.RegisterModel(lineItem{}, "",
		RelationDef{Name: "invoice", Kind: BelongsTo, Target: "invoice", ForeignKey: "invoice_id", CounterCache: "line_count"}))
	require.NoError(t, reg.Finalize())

	inv, err := reg.Lookup("invoice")
	require.NoError(t, err)
	assert.True(t, inv.Lifecycle)
	assert.True(t, inv.CounterColumn("line_count"))
	assert.Len(t, reg.CounterLinks("line_item"), 1)

	assert.Error(t, reg.RegisterModel(&invoice{}, ""))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "line_item", toSnake("LineItem"))
	assert.Equal(t, "customer_id", toSnake("CustomerID"))
	assert.Equal(t, "http_server", toSnake("HTTPServer"))
}
