package app

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/agentstation/lumea/pkg/authority"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/loader"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/types"
)

// NewReconcileCommand creates the dry-run command.
func (a *App) NewReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Extract and reconcile without loading",
		Long: `Reconcile runs every step of the pipeline except the load: sources are
extracted (or restored from snapshots), reconciled and staged under
<staging-dir>/reconciled. The destination database is not opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, true)
		},
	}
}

// NewSchemaCommand creates the command that only prepares the database.
func (a *App) NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the destination schema and print table counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := a.Loader()
			if err != nil {
				return err
			}
			if err := l.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			counts, err := l.Counts(cmd.Context())
			if err != nil {
				return err
			}
			return printCounts(cmd, counts)
		},
	}
}

// NewPrioritiesCommand creates the command that prints the source-priority
// table used by the conflict resolver.
func (a *App) NewPrioritiesCommand() *cobra.Command {
	var entity, source string
	cmd := &cobra.Command{
		Use:   "priorities [field]",
		Short: "Show which source wins each field",
		Long: `Priorities prints the source-priority table, built in or loaded from
--authorities. Without a field every entry is listed, highest first. With a
field the winning entry is shown for each entity, or with --source the
priority that source gets for the field.`,
		Example: `  lumea priorities
  lumea priorities name_regional
  lumea priorities description --entity site --source flat_file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := a.Authorities()
			if err != nil {
				return err
			}
			entities := types.EntityTypes()
			if entity != "" {
				entities = []types.EntityType{types.EntityType(entity)}
				if !slices.Contains(types.EntityTypes(), entities[0]) {
					return errors.NewValidationError("entity", entity, "unknown entity type")
				}
			}
			src := types.SourceID(source)
			if source != "" && !src.IsValid() {
				return errors.NewValidationError("source", source, "unknown source")
			}

			var rows [][]string
			for _, e := range entities {
				switch {
				case len(args) == 0:
					fields := auth.List(e)
					if source != "" {
						fields = authority.FilterBySource(fields, src)
					}
					for _, f := range fields {
						rows = append(rows, priorityRow(e, f))
					}
				case source != "":
					rows = append(rows, priorityRow(e, authority.Field{
						Path: args[0], Source: src, Priority: auth.Priority(e, args[0], src),
					}))
				default:
					if f := auth.Find(args[0], e); f != nil {
						rows = append(rows, priorityRow(e, *f))
					}
				}
			}

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header("Entity", "Field", "Source", "Priority")
			for _, row := range rows {
				if err := table.Append(row[0], row[1], row[2], row[3]); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "restrict to one entity: department, commune, site")
	cmd.Flags().StringVar(&source, "source", "", "restrict to one source")
	return cmd
}

func priorityRow(entity types.EntityType, f authority.Field) []string {
	return []string{entity.String(), f.Path, f.Source.String(), strconv.Itoa(f.Priority)}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lumea %s\n", a.version)
			fmt.Fprintf(out, "  commit:   %s\n", a.commit)
			fmt.Fprintf(out, "  built:    %s\n", a.date)
			fmt.Fprintf(out, "  built by: %s\n", a.builtBy)
		},
	}
}

// run executes the pipeline and always prints the report. The pipeline
// error, if any, is returned after the report so that main exits 1.
func (a *App) run(cmd *cobra.Command, dryRun bool) error {
	format, err := report.ParseFormat(a.config.Format)
	if err != nil {
		return err
	}

	p, err := a.Pipeline(dryRun)
	if err != nil {
		return err
	}

	result, runErr := p.Run(cmd.Context())
	if result != nil && result.Report != nil {
		if err := result.Report.Render(cmd.OutOrStdout(), format); err != nil {
			a.logger.Error().Err(err).Msg("Report not rendered")
		}
	}
	return runErr
}

func printCounts(cmd *cobra.Command, counts map[string]int) error {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	// destination order first, anything else after
	order := make(map[string]int)
	for i, t := range loader.Tables() {
		order[t] = i + 1
	}
	sort.Slice(tables, func(i, j int) bool {
		oi, oj := order[tables[i]], order[tables[j]]
		if oi != oj {
			return oi < oj
		}
		return tables[i] < tables[j]
	})

	table := tablewriter.NewTable(cmd.OutOrStdout())
	table.Header("Table", "Rows")
	for _, t := range tables {
		if err := table.Append(t, strconv.Itoa(counts[t])); err != nil {
			return err
		}
	}
	return table.Render()
}
