// Package pipeline runs one batch: extract every source, stage snapshots,
// reconcile, load and report.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/agentstation/lumea/internal/extract"
	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/loader"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/provenance"
	"github.com/agentstation/lumea/pkg/reconciler"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// Pipeline wires the extractors, the reconciler and the loader.
type Pipeline struct {
	extractors []extract.Extractor
	loader     *loader.Loader
	options    *Options
}

// New creates a pipeline. The loader may be nil for dry runs.
func New(extractors []extract.Extractor, l *loader.Loader, opts ...Option) (*Pipeline, error) {
	options := Defaults().Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if l == nil && !options.DryRun {
		return nil, &errors.ValidationError{Field: "loader", Message: "required unless dry run"}
	}
	return &Pipeline{extractors: extractors, loader: l, options: options}, nil
}

// Result is the outcome of a run.
type Result struct {
	RunID string

	// Report is always set, also when Run returns an error.
	Report *report.Report

	Reconcile *reconciler.Result
	Load      *loader.Result

	// Snapshots lists the files written during the run.
	Snapshots []string
}

// Run executes the batch. Source failures never abort the run; the error
// is non-nil only on cancellation, an invalid reconciler configuration or
// a failed load.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	if p.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.options.Timeout)
		defer cancel()
	}

	rep := report.New()
	rep.RunID = runID
	result := &Result{RunID: runID, Report: rep}
	defer rep.Finish()

	logger.Info().Int("sources", len(p.extractors)).Bool("dry_run", p.options.DryRun).Msg("Run started")

	// Step 1: extract, falling back to the previous snapshot
	tables, fromSnapshot, err := p.extract(ctx, result)
	if err != nil {
		rep.AddError(err)
		return result, err
	}

	// Step 2: reconcile
	rec, err := reconciler.New(p.reconcilerOptions()...)
	if err != nil {
		rep.AddError(err)
		return result, err
	}
	reconciled, err := rec.Reconcile(ctx, tables...)
	if err != nil {
		rep.AddError(err)
		return result, err
	}
	result.Reconcile = reconciled
	rep.Merge(reconciled.Report)
	for id := range fromSnapshot {
		if status, ok := rep.Source(id); ok {
			status.FromSnapshot = true
			rep.SetSource(status)
		}
	}

	// Step 3: stage the canonical tables
	if p.options.Snapshots {
		p.stageReconciled(ctx, result)
	}
	if p.options.Provenance {
		path := filepath.Join(p.options.StagingDir, constants.StageReconciled, ProvenanceFile)
		if err := provenance.Save(path, runID, reconciled.Provenance); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Provenance not written")
		} else {
			result.Snapshots = append(result.Snapshots, path)
		}
	}

	if p.options.DryRun {
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - nothing loaded")
		return result, nil
	}

	// Step 4: load
	if err := p.loader.EnsureSchema(ctx); err != nil {
		rep.AddError(err)
		return result, err
	}
	loaded, err := p.loader.Load(ctx, reconciled.Dataset)
	if loaded != nil {
		result.Load = loaded
		loaded.Apply(rep)
	}
	if err != nil {
		rep.AddError(err)
		return result, err
	}

	logger.Info().
		Int("departments", loaded.Counts[loader.TableDepartment]).
		Int("communes", loaded.Counts[loader.TableCommune]).
		Int("sites", loaded.Counts[loader.TableSite]).
		Int("dropped", len(rep.Drops)).
		Msg("Run completed")
	return result, nil
}

func (p *Pipeline) reconcilerOptions() []reconciler.Option {
	opts := []reconciler.Option{reconciler.WithProvenance(p.options.Provenance)}
	return append(opts, p.options.Reconciler...)
}

// extract runs every extractor. A failing source is replaced by its last
// extract snapshot; without one it is reported as skipped.
func (p *Pipeline) extract(ctx context.Context, result *Result) ([]*sources.Table, map[types.SourceID]bool, error) {
	var tables []*sources.Table
	fromSnapshot := make(map[types.SourceID]bool)
	ctx = logging.WithStage(ctx, constants.StageExtract)

	for _, e := range p.extractors {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
		}

		id := e.Source()
		logger := logging.FromContext(logging.WithSource(ctx, id.String()))

		table, err := e.Extract(ctx)
		if err == nil && table != nil {
			table.Source = id
			tables = append(tables, table)
			logger.Info().Int("rows", table.Len()).Msg("Source extracted")
			if p.options.Snapshots {
				p.save(ctx, result, constants.StageExtract, id.String(), table)
			}
			continue
		}

		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
		}
		logger.Warn().Err(err).Msg("Extraction failed, trying previous snapshot")

		snapshot, serr := sources.LoadSnapshot(p.options.StagingDir, constants.StageExtract, id)
		if serr != nil {
			if errors.IsNotFound(serr) {
				logger.Warn().Msg("Source skipped, no previous snapshot")
			} else {
				logger.Warn().Err(serr).Msg("Source skipped, snapshot unreadable")
			}
			result.Report.SkipSource(id, err)
			continue
		}
		tables = append(tables, snapshot)
		fromSnapshot[id] = true
		logger.Info().Int("rows", snapshot.Len()).Msg("Source restored from snapshot")
	}
	return tables, fromSnapshot, nil
}

func (p *Pipeline) stageReconciled(ctx context.Context, result *Result) {
	ctx = logging.WithStage(ctx, constants.StageReconciled)
	for entity, table := range result.Reconcile.Dataset.Tables() {
		p.save(logging.WithEntity(ctx, entity.String()), result, constants.StageReconciled, plural(entity), table)
	}
}

func (p *Pipeline) save(ctx context.Context, result *Result, stage, name string, table *sources.Table) {
	path, err := sources.SaveSnapshot(p.options.StagingDir, stage, name, table)
	if err != nil {
		// snapshots are a convenience, the run goes on
		logging.FromContext(ctx).Warn().Err(err).Str("name", name).Msg("Snapshot not written")
		return
	}
	result.Snapshots = append(result.Snapshots, path)
}

// plural names the reconciled snapshot of an entity: departments, communes, sites.
func plural(entity types.EntityType) string {
	return strings.ToLower(entity.String()) + "s"
}
