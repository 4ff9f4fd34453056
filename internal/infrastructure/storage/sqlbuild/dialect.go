// Package sqlbuild renders lifecycle queries and statements with squirrel for
// the SQL engines tombstone supports, and maps scanned rows back to records.
package sqlbuild

import (
	"github.com/Masterminds/squirrel"

	"tombstone/internal/metadata"
)

// Dialect captures the differences between SQL engines.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat

	codec codec
	ilike bool
	types map[metadata.ColumnKind]string
	quote func(string) string
}

var (
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: squirrel.Dollar,
		ilike:       true,
		types: map[metadata.ColumnKind]string{
			metadata.KindID:      "UUID",
			metadata.KindString:  "TEXT",
			metadata.KindInteger: "BIGINT",
			metadata.KindDecimal: "NUMERIC(20,6)",
			metadata.KindBoolean: "BOOLEAN",
			metadata.KindTime:    "TIMESTAMPTZ",
			metadata.KindJSON:    "JSONB",
		},
		quote: doubleQuote,
	}

	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: squirrel.Question,
		codec:       codec{textIDs: true, microTimes: true},
		types: map[metadata.ColumnKind]string{
			metadata.KindID:      "TEXT",
			metadata.KindString:  "TEXT",
			metadata.KindInteger: "INTEGER",
			metadata.KindDecimal: "TEXT",
			metadata.KindBoolean: "INTEGER",
			metadata.KindTime:    "INTEGER",
			metadata.KindJSON:    "TEXT",
		},
		quote: doubleQuote,
	}

	MySQL = Dialect{
		Name:        "mysql",
		Placeholder: squirrel.Question,
		codec:       codec{textIDs: true, microTimes: true},
		types: map[metadata.ColumnKind]string{
			metadata.KindID:      "CHAR(36)",
			metadata.KindString:  "VARCHAR(255)",
			metadata.KindInteger: "BIGINT",
			metadata.KindDecimal: "DECIMAL(20,6)",
			metadata.KindBoolean: "BOOLEAN",
			metadata.KindTime:    "BIGINT",
			metadata.KindJSON:    "JSON",
		},
		quote: func(s string) string { return "`" + s + "`" },
	}
)

// ByName returns the dialect for a driver name.
func ByName(name string) (Dialect, bool) {
	switch name {
	case "postgres", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	case "mysql":
		return MySQL, true
	}
	return Dialect{}, false
}

// Builder returns a squirrel builder with the dialect's placeholder format.
func (d Dialect) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

func doubleQuote(s string) string { return `"` + s + `"` }
