// Package metadata declares record types and the relations between them.
//
// Relations carry the dependent policy consulted by the lifecycle engine.
// The policy table is resolved once per cascade step through
// RelationDef.Resolve, so cascade dispatch can be inspected and tested
// without touching storage.
package metadata

import "slices"

// Reserved column names present on every table.
const (
	ColumnID          = "id"
	ColumnDestroyedAt = "destroyed_at"
)

// Cardinality is the shape of a relation.
type Cardinality string

const (
	// HasMany: target rows carry ForeignKey pointing at the owner.
	HasMany Cardinality = "has_many"
	// HasOne: like HasMany with at most one member.
	HasOne Cardinality = "has_one"
	// BelongsTo: the owning row carries ForeignKey pointing at the target.
	BelongsTo Cardinality = "belongs_to"
)

// ToMany reports whether the relation enumerates a collection.
func (c Cardinality) ToMany() bool { return c == HasMany }

// Policy is the declared dependent policy of a relation.
type Policy string

const (
	// PolicyNone leaves the relation untouched. The empty string means the same.
	PolicyNone Policy = "none"
	// PolicyDestroy picks cascade or hard delete from the target's lifecycle capability.
	PolicyDestroy Policy = "destroy"
	// PolicyCascade destroys and restores targets with the owner's instant.
	PolicyCascade Policy = "cascade"
	// PolicyHardDelete removes targets from storage permanently.
	PolicyHardDelete Policy = "hard_delete"
)

// ColumnKind is the storage kind of a column.
type ColumnKind string

const (
	KindString  ColumnKind = "string"
	KindInteger ColumnKind = "integer"
	KindDecimal ColumnKind = "decimal"
	KindBoolean ColumnKind = "boolean"
	KindTime    ColumnKind = "time"
	KindID      ColumnKind = "id"
	KindJSON    ColumnKind = "json"
)

// ColumnDef describes a column other than id and destroyed_at.
type ColumnDef struct {
	Name string     `json:"name" mapstructure:"name" validate:"required,sqlident"`
	Kind ColumnKind `json:"kind" mapstructure:"kind" validate:"required,oneof=string integer decimal boolean time id json"`
}

// RelationDef declares a dependent association of a type.
type RelationDef struct {
	Name string      `json:"name" mapstructure:"name" validate:"required"`
	Kind Cardinality `json:"kind" mapstructure:"kind" validate:"required,oneof=has_many has_one belongs_to"`

	// Target is the related type. Empty only for a polymorphic belongs_to,
	// whose target is read from TypeColumn on each row.
	Target string `json:"target,omitempty" mapstructure:"target" validate:"required_unless=Kind belongs_to"`

	ForeignKey string `json:"foreignKey" mapstructure:"foreign_key" validate:"required,sqlident"`

	// TypeColumn is the polymorphic discriminator: for has_many/has_one it lives
	// on the target and holds the owner's type name; for belongs_to it lives on
	// the declaring type and holds the target's type name.
	TypeColumn string `json:"typeColumn,omitempty" mapstructure:"type_column" validate:"omitempty,sqlident"`

	Dependent Policy `json:"dependent,omitempty" mapstructure:"dependent" validate:"omitempty,oneof=none destroy cascade hard_delete"`

	// CounterCache names the integer column on the owner that counts active
	// members: on the declaring type for has_many, on the target for belongs_to.
	CounterCache string `json:"counterCache,omitempty" mapstructure:"counter_cache" validate:"omitempty,sqlident"`

	// WithDestroyed makes traversal of this relation include destroyed members.
	WithDestroyed bool `json:"withDestroyed,omitempty" mapstructure:"with_destroyed"`
}

// Polymorphic reports whether the target type is resolved per row.
func (r RelationDef) Polymorphic() bool {
	return r.Kind == BelongsTo && r.Target == ""
}

// TypeDef describes a record type.
type TypeDef struct {
	Name  string `json:"name" mapstructure:"name" validate:"required,sqlident"`
	Table string `json:"table" mapstructure:"table" validate:"omitempty,sqlident"`

	// Lifecycle is true when the table has a destroyed_at column.
	Lifecycle bool `json:"lifecycle" mapstructure:"lifecycle"`

	Columns   []ColumnDef   `json:"columns" mapstructure:"columns" validate:"dive"`
	Relations []RelationDef `json:"relations,omitempty" mapstructure:"relations" validate:"dive"`

	// counters is filled by Registry.Finalize.
	counters map[string]bool
}

// CounterColumn reports whether the column is a counter cache kept by the
// engine. Saves never write counter columns.
func (d *TypeDef) CounterColumn(name string) bool {
	return d.counters[name]
}

func (d *TypeDef) markCounter(name string) {
	if d.counters == nil {
		d.counters = make(map[string]bool)
	}
	d.counters[name] = true
}

// Column returns a declared column.
func (d *TypeDef) Column(name string) (ColumnDef, bool) {
	if name == ColumnID {
		return ColumnDef{Name: ColumnID, Kind: KindID}, true
	}
	if name == ColumnDestroyedAt && d.Lifecycle {
		return ColumnDef{Name: ColumnDestroyedAt, Kind: KindTime}, true
	}
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// HasColumn reports whether the column exists on the table.
func (d *TypeDef) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// ColumnNames lists data columns, excluding id and destroyed_at.
func (d *TypeDef) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}

// SelectColumns lists every column in table order.
func (d *TypeDef) SelectColumns() []string {
	cols := []string{ColumnID}
	if d.Lifecycle {
		cols = append(cols, ColumnDestroyedAt)
	}
	return append(cols, d.ColumnNames()...)
}

// Relation returns a declared relation by name.
func (d *TypeDef) Relation(name string) (RelationDef, bool) {
	i := slices.IndexFunc(d.Relations, func(r RelationDef) bool { return r.Name == name })
	if i < 0 {
		return RelationDef{}, false
	}
	return d.Relations[i], true
}
