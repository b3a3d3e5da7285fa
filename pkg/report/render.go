package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/agentstation/lumea/pkg/types"
)

// Format selects how a report is rendered.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts s to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (use table, json or yaml)", s)
	}
}

// Render writes the report to w in the given format.
func (r *Report) Render(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		data, err := yaml.MarshalWithOptions(r, yaml.Indent(2), yaml.IndentSequence(false))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return r.renderTables(w)
	}
}

func (r *Report) renderTables(w io.Writer) error {
	if r.RunID != "" {
		fmt.Fprintf(w, "Run %s\n", r.RunID)
	}

	fmt.Fprintln(w, "\nSources")
	sources := make([][]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		status := "ok"
		switch {
		case s.Skipped:
			status = "skipped"
		case s.FromSnapshot:
			status = "snapshot"
		}
		sources = append(sources, []string{s.Source.String(), strconv.Itoa(s.Rows), status, s.Error})
	}
	if err := writeTable(w, []string{"Source", "Rows", "Status", "Error"}, sources, tw.AlignLeft, tw.AlignRight, tw.AlignLeft, tw.AlignLeft); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nDrops")
	counts := r.DropCounts()
	drops := [][]string{}
	for _, id := range sortedSources(counts) {
		reasons := make([]string, 0, len(counts[id]))
		for reason := range counts[id] {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		name := bucket(id)
		for _, reason := range reasons {
			drops = append(drops, []string{name, reason, strconv.Itoa(counts[id][Reason(reason)])})
		}
	}
	if len(drops) == 0 {
		drops = append(drops, []string{"-", "-", "0"})
	}
	if err := writeTable(w, []string{"Source", "Reason", "Rows"}, drops, tw.AlignLeft, tw.AlignLeft, tw.AlignRight); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nCounts")
	rows := make([][]string, 0, len(types.EntityTypes()))
	for _, entity := range types.EntityTypes() {
		stored := "-"
		if n, ok := r.Tables[string(entity)]; ok {
			stored = strconv.Itoa(n)
		}
		rows = append(rows, []string{string(entity), strconv.Itoa(r.Canonical[entity]), stored})
	}
	if err := writeTable(w, []string{"Table", "Reconciled", "Stored"}, rows, tw.AlignLeft, tw.AlignRight, tw.AlignRight); err != nil {
		return err
	}

	if len(r.Committed) > 0 {
		fmt.Fprintf(w, "\nCommitted: %s\n", strings.Join(r.Committed, ", "))
	}
	if len(r.RolledBack) > 0 {
		fmt.Fprintf(w, "\nRolled back: %s\n", strings.Join(r.RolledBack, ", "))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "\nError: %s\n", e)
	}
	return nil
}

func writeTable(w io.Writer, headers []string, rows [][]string, align ...tw.Align) error {
	config := tablewriter.Config{}
	if len(align) > 0 {
		config.Header.Alignment = tw.CellAlignment{PerColumn: align}
		config.Row.Alignment = tw.CellAlignment{PerColumn: align}
	}
	table := tablewriter.NewTable(w, tablewriter.WithConfig(config))

	h := make([]any, len(headers))
	for i, v := range headers {
		h[i] = v
	}
	table.Header(h...)

	for _, row := range rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}
