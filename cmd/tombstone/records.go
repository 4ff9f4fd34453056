package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain"
	"tombstone/internal/domain/filter"
	"tombstone/internal/domain/lifecycle"
	"tombstone/internal/domain/scope"
)

var (
	scopeName   string
	destroyedAt string
	filterJSON  string
	orderBy     string
	limit       int
	offset      int
	at          string
	noCascade   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables declared by the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema migrated")
			return nil
		})
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the registered record types",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}
		return printTypes(cmd.OutOrStdout(), reg.List())
	},
}

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List records of a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := parseScope()
		if err != nil {
			return err
		}
		var items []filter.Item
		if filterJSON != "" {
			if err := json.Unmarshal([]byte(filterJSON), &items); err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
		}

		return withApp(cmd.Context(), func(a *app) error {
			q := a.service.Records(args[0]).Scope(sc).Where(items...).Limit(limit).Offset(offset)
			if orderBy != "" {
				q.OrderBy(orderBy)
			}
			res, err := q.List(cmd.Context())
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), res)
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <type> <id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := parseScope()
		if err != nil {
			return err
		}
		recID, err := id.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[1], err)
		}

		return withApp(cmd.Context(), func(a *app) error {
			rec, err := a.service.Records(args[0]).Scope(sc).Find(cmd.Context(), recID)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec)
		})
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <type> <id>",
	Short: "Soft-destroy a record and cascade to its dependents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []lifecycle.DestroyOption
		if at != "" {
			t, err := parseInstant("--at", at)
			if err != nil {
				return err
			}
			opts = append(opts, lifecycle.At(t))
		}

		return withRecord(cmd, args, func(a *app, rec *entity.Record) error {
			res := a.service.Destroy(cmd.Context(), rec, opts...)
			if res.Err != nil {
				return res.Err
			}
			return printResult(cmd.OutOrStdout(), res)
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <type> <id>",
	Short: "Restore a destroyed record and the dependents destroyed with it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []lifecycle.RestoreOption
		if at != "" {
			t, err := parseInstant("--at", at)
			if err != nil {
				return err
			}
			opts = append(opts, lifecycle.WithCorrelation(t))
		}
		if noCascade {
			opts = append(opts, lifecycle.WithoutCascade())
		}

		return withRecord(cmd, args, func(a *app, rec *entity.Record) error {
			res := a.service.Restore(cmd.Context(), rec, opts...)
			if res.Err != nil {
				return res.Err
			}
			return printResult(cmd.OutOrStdout(), res)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Hard-delete one record without callbacks or cascade",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecord(cmd, args, func(a *app, rec *entity.Record) error {
			if err := a.service.Delete(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", rec.Ref())
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{listCmd, findCmd} {
		c.Flags().StringVar(&scopeName, "scope", "", "active (default), destroyed or all")
		c.Flags().StringVar(&destroyedAt, "destroyed-at", "", "with --scope destroyed, only records destroyed at this RFC3339 instant")
	}
	listCmd.Flags().StringVar(&filterJSON, "filter", "", `JSON filter items, e.g. [{"field":"title","operator":"eq","value":"x"}]`)
	listCmd.Flags().StringVar(&orderBy, "order", "", "order by column, prefix with - for descending")
	listCmd.Flags().IntVar(&limit, "limit", domain.DefaultLimit, "page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	destroyCmd.Flags().StringVar(&at, "at", "", "destruction instant (RFC3339), default now")
	restoreCmd.Flags().StringVar(&at, "at", "", "correlation instant (RFC3339), default the record's own")
	restoreCmd.Flags().BoolVar(&noCascade, "no-cascade", false, "restore only this record")
}

// withRecord loads args[0]/args[1] regardless of lifecycle state.
func withRecord(cmd *cobra.Command, args []string, fn func(a *app, rec *entity.Record) error) error {
	recID, err := id.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[1], err)
	}
	return withApp(cmd.Context(), func(a *app) error {
		rec, err := a.service.Records(args[0]).Unscoped().Find(cmd.Context(), recID)
		if err != nil {
			return err
		}
		return fn(a, rec)
	})
}

func parseScope() (scope.Scope, error) {
	var ts *time.Time
	if destroyedAt != "" {
		t, err := parseInstant("--destroyed-at", destroyedAt)
		if err != nil {
			return scope.Scope{}, err
		}
		ts = &t
	}
	return scope.Parse(scopeName, ts)
}

func parseInstant(flag, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s, RFC3339 expected: %w", flag, err)
	}
	return t, nil
}
