// Package loader writes a canonical dataset into the relational store.
//
// Departments, communes and sites are written in that order inside one
// transaction. Every write is insert-if-absent; the only updates fill a
// regional name that was stored empty or raise a heritage label. Loading
// the same dataset twice therefore leaves the row counts unchanged.
package loader

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/report"
)

// Loader persists canonical datasets.
type Loader struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default logger is used otherwise.
func WithLogger(logger *zerolog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader writing to db.
func New(db *sql.DB, opts ...Option) *Loader {
	l := &Loader{db: db, logger: logging.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result describes what one Load call did.
type Result struct {
	Inserted  map[string]int
	Updated   map[string]int
	Unchanged map[string]int
	// Counts holds COUNT(*) per destination table after the load.
	Counts map[string]int
	// Drops lists canonical rows whose parent could not be stored.
	Drops      []report.Drop
	Committed  []string
	RolledBack []string
}

func newResult() *Result {
	return &Result{
		Inserted:  make(map[string]int),
		Updated:   make(map[string]int),
		Unchanged: make(map[string]int),
		Counts:    make(map[string]int),
	}
}

// Apply copies the load outcome into a run report.
func (r *Result) Apply(rep *report.Report) {
	for _, d := range r.Drops {
		rep.AddDrop(d)
	}
	for table, n := range r.Counts {
		rep.Tables[table] = n
	}
	rep.Committed = append(rep.Committed, r.Committed...)
	rep.RolledBack = append(rep.RolledBack, r.RolledBack...)
}

// Load writes ds and returns the per-table outcome. On a constraint
// violation the whole table group is rolled back and the returned error is
// a *errors.LoadIntegrityError; the Result is returned alongside it.
func (l *Loader) Load(ctx context.Context, ds *canonical.Dataset) (*Result, error) {
	if ds == nil {
		return nil, &errors.ValidationError{Field: "dataset", Message: "cannot be nil"}
	}

	result := newResult()
	err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		// reset on every attempt, RunTx may retry
		*result = *newResult()
		w := &writer{
			ctx:         ctx,
			tx:          tx,
			result:      result,
			logger:      l.logger,
			departments: make(map[string]int64),
			communes:    make(map[string]int64),
		}
		return w.write(ds)
	})

	if err != nil {
		result.Drops = nil
		result.RolledBack = append([]string(nil), loadOrder...)

		var integrity *errors.LoadIntegrityError
		if stderrors.As(err, &integrity) {
			integrity.RolledBack = result.RolledBack
		}
		l.logger.Error().Err(err).Strs("rolled_back", result.RolledBack).Msg("Load failed")

		// counts still reflect the store as it is
		if counts, cerr := l.Counts(ctx); cerr == nil {
			result.Counts = counts
		}
		return result, err
	}

	result.Committed = append([]string(nil), loadOrder...)
	counts, err := l.Counts(ctx)
	if err != nil {
		return result, err
	}
	result.Counts = counts

	for _, table := range loadOrder {
		l.logger.Info().
			Str("table", table).
			Int("inserted", result.Inserted[table]).
			Int("updated", result.Updated[table]).
			Int("unchanged", result.Unchanged[table]).
			Int("rows", counts[table]).
			Msg("Table loaded")
	}
	return result, nil
}

// Counts returns COUNT(*) for every destination table.
func (l *Loader) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(Tables()))
	for _, table := range Tables() {
		var n int
		// table names come from a fixed list
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := l.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, errors.WrapResource("count", table, "", err)
		}
		counts[table] = n
	}
	return counts, nil
}
