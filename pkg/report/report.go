// Package report accumulates what happened during a run: rows dropped by
// reconciliation or load, sources that could not be read, canonical and
// stored row counts, and which tables were committed or rolled back.
//
// A report is always produced, whether the run succeeds or fails.
package report

import (
	"sort"
	"time"

	"github.com/agentstation/lumea/pkg/types"
)

// Reason classifies why a row was dropped.
type Reason string

// Drop reasons.
const (
	// ReasonMissingKey marks a row without the material to build an identity key.
	ReasonMissingKey Reason = "missing_key"
	// ReasonUnresolvedDepartment marks a commune whose department is unknown.
	ReasonUnresolvedDepartment Reason = "unresolved_department"
	// ReasonUnresolvedCommune marks a site whose commune is unknown.
	ReasonUnresolvedCommune Reason = "unresolved_commune"
	// ReasonMissingReference marks a canonical row whose parent was not stored.
	ReasonMissingReference Reason = "missing_reference"
)

// Stage names the run step that dropped a row.
type Stage string

// Run steps that drop rows.
const (
	StageReconcile Stage = "reconcile"
	StageLoad      Stage = "load"
)

// Drop records one dropped row.
type Drop struct {
	Stage Stage `json:"stage" yaml:"stage"`
	// Source is empty for drops of canonical entities during load.
	Source types.SourceID   `json:"source,omitempty" yaml:"source,omitempty"`
	Entity types.EntityType `json:"entity" yaml:"entity"`
	Reason Reason           `json:"reason" yaml:"reason"`
	// Row is the 1-based position of the row in its source table, 0 when
	// the drop concerns a canonical entity.
	Row    int    `json:"row,omitempty" yaml:"row,omitempty"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// SourceStatus describes how a source fed the run.
type SourceStatus struct {
	Source       types.SourceID `json:"source" yaml:"source"`
	Rows         int            `json:"rows" yaml:"rows"`
	FromSnapshot bool           `json:"from_snapshot,omitempty" yaml:"from_snapshot,omitempty"`
	Skipped      bool           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error        string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the end-of-run summary.
type Report struct {
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`

	Sources []SourceStatus `json:"sources" yaml:"sources"`
	Drops   []Drop         `json:"drops,omitempty" yaml:"drops,omitempty"`

	// Canonical counts rows per entity after reconciliation.
	Canonical map[types.EntityType]int `json:"canonical" yaml:"canonical"`
	// Tables counts rows per destination table after load.
	Tables map[string]int `json:"tables,omitempty" yaml:"tables,omitempty"`

	Committed  []string `json:"committed,omitempty" yaml:"committed,omitempty"`
	RolledBack []string `json:"rolled_back,omitempty" yaml:"rolled_back,omitempty"`
	Errors     []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// New creates an empty report.
func New() *Report {
	return &Report{
		StartTime: time.Now(),
		Canonical: make(map[types.EntityType]int),
		Tables:    make(map[string]int),
	}
}

// AddDrop records a dropped row.
func (r *Report) AddDrop(d Drop) {
	r.Drops = append(r.Drops, d)
}

// SetSource records or replaces the status of a source.
func (r *Report) SetSource(status SourceStatus) {
	for i := range r.Sources {
		if r.Sources[i].Source == status.Source {
			r.Sources[i] = status
			return
		}
	}
	r.Sources = append(r.Sources, status)
}

// Source returns the status of a source.
func (r *Report) Source(id types.SourceID) (SourceStatus, bool) {
	for _, s := range r.Sources {
		if s.Source == id {
			return s, true
		}
	}
	return SourceStatus{}, false
}

// SkipSource marks a source as skipped because of err.
func (r *Report) SkipSource(id types.SourceID, err error) {
	status, _ := r.Source(id)
	status.Source = id
	status.Skipped = true
	if err != nil {
		status.Error = err.Error()
	}
	r.SetSource(status)
}

// AddError records a run-level error.
func (r *Report) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// DropCounts returns drop counts per source and reason. Drops of canonical
// entities carry no source and are grouped under the empty source.
func (r *Report) DropCounts() map[types.SourceID]map[Reason]int {
	counts := make(map[types.SourceID]map[Reason]int)
	for _, d := range r.Drops {
		if counts[d.Source] == nil {
			counts[d.Source] = make(map[Reason]int)
		}
		counts[d.Source][d.Reason]++
	}
	return counts
}

// DroppedBy returns the number of rows dropped for source.
func (r *Report) DroppedBy(source types.SourceID) int {
	n := 0
	for _, d := range r.Drops {
		if d.Source == source {
			n++
		}
	}
	return n
}

// Dropped returns the number of rows dropped for reason across all sources.
func (r *Report) Dropped(reason Reason) int {
	n := 0
	for _, d := range r.Drops {
		if d.Reason == reason {
			n++
		}
	}
	return n
}

// Merge appends the drops, sources and errors of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Drops = append(r.Drops, other.Drops...)
	for _, s := range other.Sources {
		r.SetSource(s)
	}
	for k, v := range other.Canonical {
		r.Canonical[k] = v
	}
	for k, v := range other.Tables {
		r.Tables[k] = v
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.EndTime = time.Now()
}

// Failed reports whether the run recorded a run-level error.
func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

// bucket labels the drops grouped under id in rendered output.
func bucket(id types.SourceID) string {
	if id == "" {
		return string(StageLoad)
	}
	return id.String()
}

func sortedSources(counts map[types.SourceID]map[Reason]int) []types.SourceID {
	ids := make([]types.SourceID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
