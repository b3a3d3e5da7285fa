package reconciler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/lumea/pkg/anonymize"
	"github.com/agentstation/lumea/pkg/authority"
	"github.com/agentstation/lumea/pkg/classify"
	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
)

// options configures a reconciler.
type options struct {
	authorities authority.Authority
	classifier  *classify.Classifier
	detector    *anonymize.Detector
	precision   int
	clock       func() time.Time
	tracking    bool
	logger      *zerolog.Logger
}

func defaultOptions() *options {
	return &options{
		authorities: authority.New(),
		classifier:  classify.Default(),
		detector:    anonymize.Default(),
		precision:   constants.DefaultPrecision,
		clock:       time.Now,
		tracking:    true,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithAuthorities sets the source-priority table.
func WithAuthorities(authorities authority.Authority) Option {
	return func(o *options) error {
		if authorities == nil {
			return &errors.ValidationError{
				Field:   "authorities",
				Message: "cannot be nil",
			}
		}
		o.authorities = authorities
		return nil
	}
}

// WithClassifier sets the activity classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{
				Field:   "classifier",
				Message: "cannot be nil",
			}
		}
		o.classifier = c
		return nil
	}
}

// WithDetector sets the personal-name detector.
func WithDetector(d *anonymize.Detector) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{
				Field:   "detector",
				Message: "cannot be nil",
			}
		}
		o.detector = d
		return nil
	}
}

// WithPrecision sets the number of decimals site coordinates are rounded
// to when building identity keys.
func WithPrecision(decimals int) Option {
	return func(o *options) error {
		if decimals < 0 || decimals > constants.MaxPrecision {
			return &errors.ValidationError{
				Field:   "precision",
				Value:   decimals,
				Message: "must be between 0 and 9",
			}
		}
		o.precision = decimals
		return nil
	}
}

// WithClock sets the time source used for ingestion timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) error {
		if clock == nil {
			return &errors.ValidationError{
				Field:   "clock",
				Message: "cannot be nil",
			}
		}
		o.clock = clock
		return nil
	}
}

// WithProvenance enables field-level tracking.
func WithProvenance(enabled bool) Option {
	return func(o *options) error {
		o.tracking = enabled
		return nil
	}
}

// WithLogger sets the logger. By default the logger is taken from the
// context passed to Reconcile.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}
