package pipeline

import (
	"time"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/reconciler"
)

// ProvenanceFile is the name of the provenance dump in the reconciled stage.
const ProvenanceFile = "provenance.yaml"

// Options controls one pipeline run.
type Options struct {
	StagingDir string        // Root of the extract and reconciled snapshots
	DryRun     bool          // Reconcile and snapshot without loading
	Timeout    time.Duration // Bound on the whole run, 0 for none
	Snapshots  bool          // Write extract and reconciled snapshots
	Provenance bool          // Write the per-field provenance file

	// Reconciler options applied on top of the defaults
	Reconciler []reconciler.Option
}

// Defaults returns the default pipeline options.
func Defaults() *Options {
	return &Options{
		StagingDir: constants.DefaultStagingDir,
		Snapshots:  true,
	}
}

// Option is a function that configures pipeline Options.
type Option func(*Options)

// Apply applies the given options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks the options.
func (o *Options) Validate() error {
	if o.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   o.Timeout,
			Message: "timeout must be non-negative",
		}
	}
	if o.StagingDir == "" && (o.Snapshots || o.Provenance) {
		return &errors.ValidationError{
			Field:   "StagingDir",
			Message: "required when snapshots or provenance are written",
		}
	}
	return nil
}

// WithStagingDir sets the snapshot root.
func WithStagingDir(dir string) Option {
	return func(o *Options) { o.StagingDir = dir }
}

// WithDryRun skips the load phase.
func WithDryRun(dryRun bool) Option {
	return func(o *Options) { o.DryRun = dryRun }
}

// WithTimeout bounds the whole run.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithSnapshots enables or disables snapshot writing. Snapshot fallback on
// extraction failure stays available either way.
func WithSnapshots(enabled bool) Option {
	return func(o *Options) { o.Snapshots = enabled }
}

// WithProvenance writes provenance.yaml next to the reconciled snapshots.
// The file holds raw source values, personal names included.
func WithProvenance(enabled bool) Option {
	return func(o *Options) { o.Provenance = enabled }
}

// WithReconcilerOptions passes options to the reconciler.
func WithReconcilerOptions(opts ...reconciler.Option) Option {
	return func(o *Options) { o.Reconciler = append(o.Reconciler, opts...) }
}
