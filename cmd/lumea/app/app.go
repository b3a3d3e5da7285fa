// Package app provides the application context and dependency management
// for the lumea CLI: configuration, logging, the destination database and
// the construction of the pipeline from configuration.
package app

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/internal/extract"
	"github.com/agentstation/lumea/pkg/authority"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/loader"
	"github.com/agentstation/lumea/pkg/pipeline"
	"github.com/agentstation/lumea/pkg/reconciler"
	"github.com/agentstation/lumea/pkg/types"
)

// App represents the lumea application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// httpClient is shared by the remote sources; nil selects the default
	httpClient *http.Client

	// Destination database (lazy-initialized, singleton)
	mu sync.Mutex
	db *sql.DB
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// DB returns the destination database, opening it on first use.
func (a *App) DB() (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return a.db, nil
	}
	db, err := dbopen.Open(a.config.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		return nil, errors.WrapResource("open", "database", a.config.DBPath, err)
	}
	a.db = db
	return db, nil
}

// Loader returns a loader writing to the destination database.
func (a *App) Loader() (*loader.Loader, error) {
	db, err := a.DB()
	if err != nil {
		return nil, err
	}
	return loader.New(db, loader.WithLogger(a.logger)), nil
}

// Extractors builds one extractor per source. Sources without settings
// are still listed so that their last snapshot can feed the run.
func (a *App) Extractors() []extract.Extractor {
	c := a.config
	ex := []extract.Extractor{extract.NewCatalogAPI(c.APIURL, a.httpClient)}

	if c.MongoURI != "" {
		ex = append(ex, extract.NewDocumentStore(c.MongoURI, c.MongoDatabase, c.MongoCollection))
	} else {
		ex = append(ex, extract.Unconfigured(types.DocumentStore, "LUMEA_MONGO_URI is not set"))
	}

	if c.StagingDB != "" {
		ex = append(ex, extract.NewRelationalStaging(c.StagingDB))
	} else {
		ex = append(ex, extract.Unconfigured(types.RelationalStaging, "LUMEA_STAGING_DB is not set"))
	}

	if c.FlatFilePath != "" {
		ex = append(ex, extract.NewFlatFile(c.FlatFilePath))
	} else {
		ex = append(ex, extract.Unconfigured(types.FlatFile, "LUMEA_FLATFILE_PATH is not set"))
	}

	if c.ScrapeURL != "" {
		ex = append(ex, extract.NewScrapedPage(c.ScrapeURL, a.httpClient))
	} else {
		ex = append(ex, extract.Unconfigured(types.ScrapedPage, "LUMEA_SCRAPE_URL is not set"))
	}
	return ex
}

// Authorities returns the source-priority table: the file named by the
// configuration, or the built-in table.
func (a *App) Authorities() (authority.Authority, error) {
	if a.config.AuthoritiesFile == "" {
		return authority.New(), nil
	}
	return authority.LoadFile(a.config.AuthoritiesFile)
}

// Pipeline builds the batch pipeline from configuration.
func (a *App) Pipeline(dryRun bool) (*pipeline.Pipeline, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	authorities, err := a.Authorities()
	if err != nil {
		return nil, err
	}

	var l *loader.Loader
	if !dryRun {
		if l, err = a.Loader(); err != nil {
			return nil, err
		}
	}

	return pipeline.New(a.Extractors(), l,
		pipeline.WithStagingDir(a.config.StagingDir),
		pipeline.WithDryRun(dryRun),
		pipeline.WithTimeout(a.config.Timeout),
		pipeline.WithProvenance(a.config.Provenance),
		pipeline.WithReconcilerOptions(
			reconciler.WithAuthorities(authorities),
			reconciler.WithPrecision(a.config.Precision),
			reconciler.WithLogger(a.logger),
		),
	)
}

// Shutdown closes the destination database.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return &errors.ValidationError{Field: "config", Message: "cannot be nil"}
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithHTTPClient sets the HTTP client of the remote sources.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) error {
		a.httpClient = hc
		return nil
	}
}
