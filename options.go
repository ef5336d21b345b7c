package placemap

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/placemap/pkg/cache"
	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/dedup"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/linker"
	"github.com/agentstation/placemap/pkg/providers"
)

// Option is a function that configures a Client.
type Option func(*config) error

// config holds the dependencies and tolerances of a Client.
type config struct {
	catalog       catalog.Store
	cache         cache.Store
	authoritative providers.Provider
	providers     []providers.Provider
	mapping       *linker.LayerMapping
	linkRadius    float64
	dedup         dedup.Config
	searchTTL     time.Duration
	placeTTL      time.Duration
	logger        *zerolog.Logger
}

func defaultConfig() *config {
	nop := zerolog.Nop()
	return &config{
		mapping:    &linker.LayerMapping{Sources: map[string]string{}},
		linkRadius: constants.LinkRadius,
		dedup:      dedup.DefaultConfig(),
		searchTTL:  constants.SearchCacheTTL,
		placeTTL:   constants.PlaceCacheTTL,
		logger:     &nop,
	}
}

// WithCatalog sets the authoritative store used for searching, linking and
// layer overlays.
func WithCatalog(store catalog.Store) Option {
	return func(c *config) error {
		if store == nil {
			return errors.NewValidationError("catalog", nil, "must not be nil")
		}
		c.catalog = store
		return nil
	}
}

// WithCache sets the cache store. The default is an in-memory cache.
func WithCache(store cache.Store) Option {
	return func(c *config) error {
		if store == nil {
			return errors.NewValidationError("cache", nil, "must not be nil")
		}
		c.cache = store
		return nil
	}
}

// WithAuthoritative replaces the provider that answers the authoritative
// query. By default the catalog itself is queried.
func WithAuthoritative(p providers.Provider) Option {
	return func(c *config) error {
		if p == nil {
			return errors.NewValidationError("authoritative", nil, "must not be nil")
		}
		c.authoritative = p
		return nil
	}
}

// WithProviders adds external providers. Nil entries are skipped.
func WithProviders(ps ...providers.Provider) Option {
	return func(c *config) error {
		for _, p := range ps {
			if p != nil {
				c.providers = append(c.providers, p)
			}
		}
		return nil
	}
}

// WithLinkRadius sets the tolerance in meters for matching observed places
// to canonical ones. It is independent of the dedup radius.
func WithLinkRadius(meters float64) Option {
	return func(c *config) error {
		if meters <= 0 {
			return errors.NewValidationError("link_radius", meters, "must be positive")
		}
		c.linkRadius = meters
		return nil
	}
}

// WithDedupConfig sets the deduplication parameters.
func WithDedupConfig(cfg dedup.Config) Option {
	return func(c *config) error {
		c.dedup = cfg
		return nil
	}
}

// WithLayerMapping sets the source to layer mapping used when linking.
func WithLayerMapping(m *linker.LayerMapping) Option {
	return func(c *config) error {
		if m != nil {
			c.mapping = m
		}
		return nil
	}
}

// WithSearchTTL sets how long search results are cached.
func WithSearchTTL(ttl time.Duration) Option {
	return func(c *config) error {
		if ttl <= 0 {
			return errors.NewValidationError("search_ttl", ttl, "must be positive")
		}
		c.searchTTL = ttl
		return nil
	}
}

// WithPlaceTTL sets how long single places are cached.
func WithPlaceTTL(ttl time.Duration) Option {
	return func(c *config) error {
		if ttl <= 0 {
			return errors.NewValidationError("place_ttl", ttl, "must be positive")
		}
		c.placeTTL = ttl
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}
