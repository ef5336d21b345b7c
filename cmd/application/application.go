// Package application defines what placemap commands and the HTTP server need
// from the running application.
//
// Commands accept the interface rather than the concrete App so tests can
// pass a Mock:
//
//	mock := &application.Mock{
//	    PlacemapFunc: func(context.Context) (placemap.Client, error) {
//	        return testClient, nil
//	    },
//	}
//	cmd := search.NewSearchCommand(mock)
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/pkg/catalog"
)

// Application provides the dependencies commands need.
//
// All methods must be safe for concurrent use.
type Application interface {
	// Placemap returns the search orchestrator, creating it on first use.
	Placemap(ctx context.Context) (placemap.Client, error)

	// Catalog returns the authoritative store, opening it on first use.
	Catalog(ctx context.Context) (catalog.Store, error)

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format (table, json, yaml, ...).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
