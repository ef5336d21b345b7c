// Package app provides the application context and dependency management
// for the placemap CLI: configuration, logging, the catalog store and the
// search orchestrator, all created lazily and shared by every command.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/output"
	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/errors"
)

// App represents the placemap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Lazily created, shared
	mu       sync.RWMutex
	catalog  catalog.Store
	placemap placemap.Client
}

var _ application.Application = (*App)(nil)

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

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the requested output format, detecting one from the
// terminal when none was given.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.config.Format))
}

// Catalog returns the catalog store, opening it on first use.
func (a *App) Catalog(ctx context.Context) (catalog.Store, error) {
	a.mu.RLock()
	if a.catalog != nil {
		store := a.catalog
		a.mu.RUnlock()
		return store, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalogLocked(ctx)
}

func (a *App) catalogLocked(ctx context.Context) (catalog.Store, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	store, err := a.openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	a.catalog = store
	return store, nil
}

// Placemap returns the search orchestrator, creating it on first use.
func (a *App) Placemap(ctx context.Context) (placemap.Client, error) {
	a.mu.RLock()
	if a.placemap != nil {
		pm := a.placemap
		a.mu.RUnlock()
		return pm, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.placemap != nil {
		return a.placemap, nil
	}

	store, err := a.catalogLocked(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := a.placemapOptions(store)
	if err != nil {
		return nil, err
	}
	pm, err := placemap.New(opts...)
	if err != nil {
		return nil, errors.WrapResource("create", "placemap", "", err)
	}

	a.placemap = pm
	return pm, nil
}

// Shutdown releases the catalog connection.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.catalog == nil {
		return nil
	}
	err := a.catalog.Close()
	a.catalog = nil
	a.placemap = nil
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to close catalog")
		return errors.WrapResource("close", "catalog", "", err)
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
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

// WithCatalog sets the catalog store instead of opening one from config.
func WithCatalog(store catalog.Store) Option {
	return func(a *App) error {
		a.catalog = store
		return nil
	}
}

// WithPlacemap sets the orchestrator (useful for testing).
func WithPlacemap(pm placemap.Client) Option {
	return func(a *App) error {
		a.placemap = pm
		return nil
	}
}
