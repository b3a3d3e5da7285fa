// Package sources defines the SourceTable contract handed over by the
// extraction adapters: a string-typed table with named columns, one row per
// observed entity fragment, tagged with the source it came from.
//
// Adapters may use their native column names. Normalize maps them to the
// canonical vocabulary and Validate rejects tables that carry none of the
// columns their source is expected to provide.
package sources

import (
	"slices"
	"strings"

	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/types"
)

// Row is one entity fragment. Values are raw strings.
type Row map[string]string

// Get returns the trimmed value of col, or "" when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Has reports whether col carries a non-blank value.
func (r Row) Has(col string) bool {
	return r.Get(col) != ""
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an in-memory source table.
type Table struct {
	Source  types.SourceID
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given columns.
func NewTable(source types.SourceID, columns ...string) *Table {
	return &Table{
		Source:  source,
		Columns: slices.Clone(columns),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether col is declared on the table.
func (t *Table) HasColumn(col string) bool {
	return slices.Contains(t.Columns, col)
}

// Append adds a row, declaring any column it introduces.
func (t *Table) Append(row Row) {
	for col := range row {
		if !t.HasColumn(col) {
			t.Columns = append(t.Columns, col)
		}
	}
	t.Rows = append(t.Rows, row)
}

// AppendValues adds a row from values positioned like Columns. Missing
// trailing values are left empty and extra values are ignored.
func (t *Table) AppendValues(values ...string) {
	row := make(Row, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	t.Rows = append(t.Rows, row)
}

// Normalize returns a copy of the table with every column renamed to the
// canonical vocabulary. When two raw columns map to the same canonical name
// the first non-blank value wins.
func (t *Table) Normalize() *Table {
	out := &Table{Source: t.Source}
	rename := make(map[string]string, len(t.Columns))
	for _, col := range t.Columns {
		canonical := Canonical(t.Source, col)
		rename[col] = canonical
		if !out.HasColumn(canonical) {
			out.Columns = append(out.Columns, canonical)
		}
	}

	out.Rows = make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		nrow := make(Row, len(row))
		set := func(canonical, v string) {
			if strings.TrimSpace(nrow[canonical]) == "" {
				nrow[canonical] = v
			}
		}
		// declared columns first so collisions resolve in header order
		for _, col := range t.Columns {
			if v, ok := row[col]; ok {
				set(rename[col], v)
			}
		}
		for col, v := range row {
			if _, declared := rename[col]; !declared {
				set(Canonical(t.Source, col), v)
			}
		}
		out.Rows = append(out.Rows, nrow)
	}
	return out
}

// Validate checks that a normalized table carries at least one expected
// column for its source. It returns a *errors.SourceUnreadableError otherwise.
func (t *Table) Validate() error {
	if t == nil {
		return errors.NewSourceUnreadableError("unknown", nil, "no table", nil)
	}
	expected := ExpectedColumns(t.Source)
	for _, col := range expected {
		if t.HasColumn(col) {
			return nil
		}
	}
	return errors.NewSourceUnreadableError(t.Source.String(), expected, "no expected column present", nil)
}
