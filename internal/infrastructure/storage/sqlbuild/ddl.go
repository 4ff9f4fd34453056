package sqlbuild

import (
	"fmt"
	"strings"

	"tombstone/internal/metadata"
)

// CreateTable returns the statements that create def's table and its
// indexes: one on destroyed_at and one per id-typed column.
func (d Dialect) CreateTable(def *metadata.TypeDef) []string {
	cols := []string{
		fmt.Sprintf("%s %s PRIMARY KEY", d.quote(metadata.ColumnID), d.types[metadata.KindID]),
	}
	var indexed []string
	if def.Lifecycle {
		cols = append(cols, fmt.Sprintf("%s %s NULL", d.quote(metadata.ColumnDestroyedAt), d.types[metadata.KindTime]))
		indexed = append(indexed, metadata.ColumnDestroyedAt)
	}
	for _, c := range def.Columns {
		cols = append(cols, fmt.Sprintf("%s %s NULL", d.quote(c.Name), d.types[c.Kind]))
		if c.Kind == metadata.KindID {
			indexed = append(indexed, c.Name)
		}
	}

	if d.Name == "mysql" {
		for _, col := range indexed {
			cols = append(cols, fmt.Sprintf("INDEX %s (%s)", d.quote(indexName(def.Table, col)), d.quote(col)))
		}
		return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(def.Table), strings.Join(cols, ",\n\t"))}
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(def.Table), strings.Join(cols, ",\n\t"))}
	for _, col := range indexed {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			d.quote(indexName(def.Table, col)), d.quote(def.Table), d.quote(col)))
	}
	return stmts
}

// Schema returns the statements for every registered type.
func (d Dialect) Schema(reg *metadata.Registry) []string {
	var stmts []string
	for _, def := range reg.List() {
		stmts = append(stmts, d.CreateTable(def)...)
	}
	return stmts
}

func indexName(table, col string) string {
	return "idx_" + table + "_" + col
}
