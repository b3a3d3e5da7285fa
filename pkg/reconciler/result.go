package reconciler

import (
	"time"

	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/provenance"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/types"
)

// Result represents the outcome of a reconciliation.
type Result struct {
	// Dataset is the canonical graph, ready for loading.
	Dataset *canonical.Dataset

	// Report holds drops, source statuses and canonical counts.
	Report *report.Report

	// Provenance maps every resolved field to its winning source.
	Provenance provenance.Map

	// Metadata
	Metadata ResultMetadata

	// Errors lists sources that could not be read. They are not fatal.
	Errors []error
}

// ResultMetadata contains metadata about the reconciliation.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Sources that contributed at least one row
	Sources []types.SourceID

	Stats ResultStatistics
}

// ResultStatistics contains statistics about the reconciliation.
type ResultStatistics struct {
	RowsCollected     int
	RowsDropped       int
	ConflictsResolved int
	SitesClassified   int
	SitesAnonymized   int
	SitesMerged       int
	SourcesSkipped    int
	TotalTimeMs       int64
}

// NewResult creates a new result with defaults.
func NewResult() *Result {
	return &Result{
		Dataset:    &canonical.Dataset{},
		Report:     report.New(),
		Provenance: make(provenance.Map),
		Metadata: ResultMetadata{
			StartTime: time.Now(),
		},
	}
}

// IsSuccess returns true if every source was readable.
func (r *Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

// Finalize calculates duration and records canonical counts.
func (r *Result) Finalize() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
	r.Metadata.Stats.TotalTimeMs = r.Metadata.Duration.Milliseconds()
	r.Metadata.Stats.RowsDropped = len(r.Report.Drops)
	for entity, n := range r.Dataset.Counts() {
		r.Report.Canonical[entity] = n
	}
}
