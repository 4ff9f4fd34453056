package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"tombstone/internal/core/entity"
	"tombstone/internal/domain"
	"tombstone/internal/domain/lifecycle"
	"tombstone/internal/infrastructure/http/v1/dto"
	"tombstone/internal/metadata"
)

// Output uses the HTTP API's wire types so --json matches the API responses.

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecord(w io.Writer, rec *entity.Record) error {
	if jsonOutput {
		return printJSON(w, dto.FromRecord(rec))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "type\t%s\n", rec.Type)
	fmt.Fprintf(tw, "id\t%s\n", rec.ID)
	fmt.Fprintf(tw, "destroyed_at\t%s\n", formatInstant(rec.DestroyedAt))
	for _, k := range sortedKeys(rec.Fields) {
		fmt.Fprintf(tw, "%s\t%v\n", k, rec.Fields[k])
	}
	return tw.Flush()
}

func printList(w io.Writer, res domain.ListResult[*entity.Record]) error {
	if jsonOutput {
		return printJSON(w, dto.FromList(res))
	}

	keys := map[string]struct{}{}
	for _, rec := range res.Items {
		for k := range rec.Fields {
			keys[k] = struct{}{}
		}
	}
	cols := sortedKeys(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tDESTROYED_AT\t%s\n", strings.ToUpper(strings.Join(cols, "\t")))
	for _, rec := range res.Items {
		row := make([]string, len(cols))
		for i, k := range cols {
			if v, ok := rec.Fields[k]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.ID, formatInstant(rec.DestroyedAt), strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d (offset %d)\n", len(res.Items), res.TotalCount, res.Offset)
	return err
}

func printResult(w io.Writer, res lifecycle.Result) error {
	if jsonOutput {
		return printJSON(w, dto.FromResult(res))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "instant\t%s\n", formatInstant(res.Instant))
	for _, group := range []struct {
		label string
		refs  []entity.Ref
	}{
		{"destroyed", res.Destroyed},
		{"restored", res.Restored},
		{"purged", res.Purged},
	} {
		for _, ref := range group.refs {
			fmt.Fprintf(tw, "%s\t%s\n", group.label, ref)
		}
	}
	return tw.Flush()
}

func printTypes(w io.Writer, defs []*metadata.TypeDef) error {
	if jsonOutput {
		return printJSON(w, defs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTABLE\tLIFECYCLE\tRELATIONS")
	for _, def := range defs {
		rels := make([]string, len(def.Relations))
		for i, rel := range def.Relations {
			rels[i] = fmt.Sprintf("%s(%s)", rel.Name, rel.Kind)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", def.Name, def.Table, def.Lifecycle, strings.Join(rels, ","))
	}
	return tw.Flush()
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339Nano)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
