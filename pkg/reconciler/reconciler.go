// Package reconciler merges per-source tables into one canonical graph of
// departments, communes and sites.
//
// Reconciliation runs seven steps in a fixed order: collect, departments,
// communes, sites, classification, anonymization and a final dedup. Bad
// rows are dropped and counted, never fatal; a source is skipped only when
// its table carries none of the expected columns.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/lumea/pkg/conflict"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/provenance"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// Reconciler is the main interface for reconciling source tables.
type Reconciler interface {
	// Reconcile merges the tables into a canonical dataset. It only fails
	// when ctx is canceled; unreadable sources are listed in Result.Errors.
	Reconcile(ctx context.Context, tables ...*sources.Table) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	options *options
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{options: options}, nil
}

// run holds the state of a single reconciliation.
type run struct {
	options  *options
	resolver *conflict.Resolver
	tracker  provenance.Tracker
	logger   *zerolog.Logger
	result   *Result
	now      time.Time
}

// Reconcile performs reconciliation step by step.
func (r *reconciler) Reconcile(ctx context.Context, tables ...*sources.Table) (*Result, error) {
	logger := r.options.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	rn := &run{
		options:  r.options,
		resolver: conflict.New(r.options.authorities),
		tracker:  provenance.NewTracker(r.options.tracking),
		logger:   logger,
		result:   NewResult(),
		now:      r.options.clock().UTC(),
	}

	// Step 1: union all tables
	records := rn.collect(tables)
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	// Step 2: departments
	departments := rn.departments(records)
	logger.Info().Int("departments", len(departments.drafts)).Msg("Reconciled departments")

	// Step 3: communes
	communes := rn.communes(records, departments)
	logger.Info().Int("communes", len(communes.drafts)).Msg("Reconciled communes")
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	// Step 4: sites
	sites := rn.sites(records, communes)

	// Step 5: classification
	rn.classify(sites)

	// Step 6: anonymization
	rn.anonymize(sites)
	logger.Info().
		Int("sites", len(sites)).
		Int("classified", rn.result.Metadata.Stats.SitesClassified).
		Int("anonymized", rn.result.Metadata.Stats.SitesAnonymized).
		Msg("Reconciled sites")
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	// Step 7: final dedup
	dataset := rn.dedup(departments, communes, sites)
	for _, err := range dataset.Validate() {
		logger.Warn().Err(err).Msg("Canonical graph inconsistency")
	}

	rn.result.Dataset = dataset
	rn.result.Provenance = rn.tracker.Map()
	rn.result.Finalize()

	logger.Info().
		Int("rows", rn.result.Metadata.Stats.RowsCollected).
		Int("dropped", rn.result.Metadata.Stats.RowsDropped).
		Int("conflicts", rn.result.Metadata.Stats.ConflictsResolved).
		Dur("duration", rn.result.Metadata.Duration).
		Msg("Reconciliation complete")
	return rn.result, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return nil
}

// resolve resolves one field and records its provenance.
func (r *run) resolve(entity types.EntityType, key keys.Key, spec conflict.FieldSpec, candidates []conflict.Candidate) conflict.Resolution {
	res := r.resolver.Resolve(entity, key.String(), spec, candidates)
	if res.Conflict {
		r.result.Metadata.Stats.ConflictsResolved++
	}
	r.tracker.Track(entity, key.String(), spec.Name, provenance.Provenance{
		Source:    res.Source,
		Value:     res.Value,
		Timestamp: r.now,
		Priority:  res.Priority,
		Reason:    res.Reason,
		Conflict:  res.Conflict,
	})
	return res
}

// drop records a dropped row.
func (r *run) drop(rec *record, entity types.EntityType, reason report.Reason, detail string) {
	r.result.Report.AddDrop(report.Drop{
		Stage:  report.StageReconcile,
		Source: rec.source,
		Entity: entity,
		Reason: reason,
		Row:    rec.ordinal,
		Detail: detail,
	})
	r.logger.Debug().
		Str("source", rec.source.String()).
		Str("entity", entity.String()).
		Str("reason", string(reason)).
		Int("row", rec.ordinal).
		Str("detail", detail).
		Msg("Dropped row")
}

// group is a set of records sharing an identity key.
type group struct {
	key     keys.Key
	records []*record
}

// candidates returns the group's values for col, one per record.
func (g *group) candidates(col string) []conflict.Candidate {
	out := make([]conflict.Candidate, 0, len(g.records))
	for _, rec := range g.records {
		out = append(out, conflict.Candidate{Source: rec.source, Value: rec.get(col)})
	}
	return out
}

// groups keeps groups in first-encounter order.
type groups struct {
	order []*group
	index map[keys.Key]*group
}

func newGroups() *groups {
	return &groups{index: make(map[keys.Key]*group)}
}

func (gs *groups) add(k keys.Key, rec *record) *group {
	g, ok := gs.index[k]
	if !ok {
		g = &group{key: k}
		gs.index[k] = g
		gs.order = append(gs.order, g)
	}
	g.records = append(g.records, rec)
	return g
}

func (gs *groups) get(k keys.Key) (*group, bool) {
	g, ok := gs.index[k]
	return g, ok
}
