// Package placemap answers geospatial place searches from one authoritative
// catalog plus any number of external providers.
//
// A search checks the cache, queries the catalog, fans out to every external
// provider concurrently, links what they return to canonical places,
// deduplicates and ranks the union, attaches layer overlays and caches the
// answer. A failing provider only loses its own contribution; a failing
// catalog fails the search.
//
// Example usage:
//
//	store := memory.New()
//	pm, err := placemap.New(
//	    placemap.WithCatalog(store),
//	    placemap.WithProviders(googleProvider, elasticProvider),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pm.OnLinkCreated(func(e placemap.LinkEvent) {
//	    log.Printf("linked %s to %s", e.Place.Name, e.Layer)
//	})
//
//	res, err := pm.Search(ctx, places.SearchQuery{Lat: 40.73, Lon: -73.99, Query: "pizza"})
package placemap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	catalogprovider "github.com/agentstation/placemap/internal/providers/catalog"
	"github.com/agentstation/placemap/pkg/cache"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/dedup"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/linker"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

// Client is the search orchestrator.
type Client interface {
	// Search runs a geospatial search.
	Search(ctx context.Context, q places.SearchQuery) (*places.Result, error)

	// SearchBounds searches a box and keeps only places inside it.
	SearchBounds(ctx context.Context, b places.Bounds, q places.SearchQuery) (*places.Result, error)

	// GetPlace looks a place up by id, asking providers by priority.
	GetPlace(ctx context.Context, id string) (*places.Place, error)

	// Link resolves one observed place against the catalog.
	Link(ctx context.Context, p *places.Place, source string) (*places.Place, linker.Outcome, error)

	// HealthCheck reports the health of every provider.
	HealthCheck(ctx context.Context) map[string]bool

	// Providers describes the registered providers by priority.
	Providers() []providers.Info

	// Layers returns the layers defined in the catalog.
	Layers(ctx context.Context) ([]places.Layer, error)

	// OnPlaceCreated registers a callback for canonical places created by linking.
	OnPlaceCreated(PlaceCreatedHook)

	// OnLinkCreated registers a callback for new links.
	OnLinkCreated(LinkHook)

	// OnLinkUpdated registers a callback for links whose data changed.
	OnLinkUpdated(LinkHook)

	// OnLinkTouched registers a callback for links that were only refreshed.
	OnLinkTouched(LinkHook)
}

// OverlayLoader loads layer overlays for a set of places.
type OverlayLoader interface {
	BatchLoadLinks(ctx context.Context, placeIDs []string) (map[string][]places.Overlay, error)
}

// client is the implementation of Client.
type client struct {
	config        *config
	logger        *zerolog.Logger
	cache         cache.Store
	authoritative providers.Provider
	external      []providers.Provider
	registry      *providers.Registry
	linker        *linker.Linker
	overlays      OverlayLoader
	merger        *dedup.Merger
	hooks         *hooks
}

// New creates a Client. A catalog or an authoritative provider is required.
func New(opts ...Option) (Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	c := &client{
		config: cfg,
		logger: cfg.logger,
		cache:  cfg.cache,
		hooks:  newHooks(),
		merger: dedup.NewMerger(cfg.dedup, dedup.WithLogger(cfg.logger)),
	}
	if c.cache == nil {
		c.cache = cache.New(constants.SearchCacheTTL, constants.CacheCleanupInterval)
	}

	c.authoritative = cfg.authoritative
	if c.authoritative == nil {
		if cfg.catalog == nil {
			return nil, errors.NewConfigError("placemap", "a catalog or an authoritative provider is required", nil)
		}
		c.authoritative = catalogprovider.New(cfg.catalog, 0)
	}

	if cfg.catalog != nil {
		c.overlays = cfg.catalog
		c.linker = linker.New(cfg.catalog,
			linker.WithMapping(cfg.mapping),
			linker.WithRadius(cfg.linkRadius),
			linker.WithLogger(cfg.logger),
			linker.WithListener(c.hooks.trigger),
		)
	}

	c.registry = providers.NewRegistry(c.authoritative)
	for _, p := range cfg.providers {
		if p.Name() == c.authoritative.Name() {
			return nil, errors.NewConfigError("placemap",
				fmt.Sprintf("provider %q collides with the authoritative provider", p.Name()), nil)
		}
		if _, dup := c.registry.Get(p.Name()); dup {
			return nil, errors.NewConfigError("placemap", fmt.Sprintf("duplicate provider %q", p.Name()), nil)
		}
		c.registry.Register(p)
		c.external = append(c.external, p)
	}

	c.logger.Debug().
		Str("authoritative", c.authoritative.Name()).
		Strs("providers", c.registry.Names()).
		Float64("link_radius", cfg.linkRadius).
		Float64("dedup_radius", c.merger.Config().Radius).
		Msg("Placemap client ready")
	return c, nil
}

// Link implements Client.
func (c *client) Link(ctx context.Context, p *places.Place, source string) (*places.Place, linker.Outcome, error) {
	if c.linker == nil {
		return nil, linker.Failed, errors.NewConfigError("placemap", "linking requires a catalog", nil)
	}
	return c.linker.Link(ctx, p, source)
}

// Providers implements Client.
func (c *client) Providers() []providers.Info {
	list := c.registry.List()
	out := make([]providers.Info, len(list))
	for i, p := range list {
		out[i] = providers.InfoOf(p, p.Name() == c.authoritative.Name())
	}
	return out
}

// Layers implements Client.
func (c *client) Layers(ctx context.Context) ([]places.Layer, error) {
	if c.config.catalog == nil {
		return []places.Layer{}, nil
	}
	layers, err := c.config.catalog.Layers(ctx)
	if err != nil {
		return nil, errors.NewCatalogUnavailableError("layers", err)
	}
	return layers, nil
}
