package app

import (
	"context"
	"fmt"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/internal/catalog/memory"
	"github.com/agentstation/placemap/internal/catalog/postgres"
	"github.com/agentstation/placemap/internal/importer"
	"github.com/agentstation/placemap/internal/providers/accessibility"
	"github.com/agentstation/placemap/internal/providers/elastic"
	"github.com/agentstation/placemap/internal/providers/google"
	"github.com/agentstation/placemap/internal/server/events"
	"github.com/agentstation/placemap/internal/stream"
	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/dedup"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/linker"
	"github.com/agentstation/placemap/pkg/providers"
)

// openCatalog opens the configured store, migrates it and seeds the layers
// named in the layer mapping.
func (a *App) openCatalog(ctx context.Context) (catalog.Store, error) {
	mapping, err := a.layerMapping()
	if err != nil {
		return nil, err
	}

	var store catalog.Store
	switch a.config.CatalogDriver {
	case DriverMemory:
		a.logger.Warn().Msg("Using the in-memory catalog; data is lost on exit")
		store = memory.New()
	case DriverPostgres, "":
		if a.config.DatabaseURL == "" {
			return nil, errors.NewConfigError("catalog", "DATABASE_URL is required for the postgres driver", nil)
		}
		pg, err := postgres.Open(a.config.DatabaseURL, postgres.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		store = pg
	default:
		return nil, errors.NewConfigError("catalog",
			fmt.Sprintf("unknown catalog driver %q: must be postgres or memory", a.config.CatalogDriver), nil)
	}

	if mapping != nil && len(mapping.Layers) > 0 {
		if err := store.UpsertLayers(ctx, mapping.Layers); err != nil {
			_ = store.Close()
			return nil, errors.WrapResource("seed", "layers", a.config.LayerMapping, err)
		}
		a.logger.Debug().Int("layers", len(mapping.Layers)).Msg("Layers seeded from mapping")
	}
	return store, nil
}

// layerMapping loads the mapping file, if one is configured.
func (a *App) layerMapping() (*linker.LayerMapping, error) {
	if a.config.LayerMapping == "" {
		return nil, nil
	}
	return linker.LoadMapping(a.config.LayerMapping)
}

// placemapOptions builds the orchestrator options from the configuration.
func (a *App) placemapOptions(store catalog.Store) ([]placemap.Option, error) {
	mapping, err := a.layerMapping()
	if err != nil {
		return nil, err
	}
	external, err := a.externalProviders()
	if err != nil {
		return nil, err
	}

	dedupConfig := dedup.DefaultConfig()
	if a.config.DedupRadius > 0 {
		dedupConfig.Radius = a.config.DedupRadius
	}

	opts := []placemap.Option{
		placemap.WithCatalog(store),
		placemap.WithLayerMapping(mapping),
		placemap.WithDedupConfig(dedupConfig),
		placemap.WithProviders(external...),
		placemap.WithLogger(a.logger),
	}
	if a.config.LinkRadius > 0 {
		opts = append(opts, placemap.WithLinkRadius(a.config.LinkRadius))
	}
	if a.config.SearchTTL > 0 {
		opts = append(opts, placemap.WithSearchTTL(a.config.SearchTTL))
	}
	if a.config.PlaceTTL > 0 {
		opts = append(opts, placemap.WithPlaceTTL(a.config.PlaceTTL))
	}
	return opts, nil
}

// externalProviders creates every provider that is configured. Providers
// without credentials are skipped.
func (a *App) externalProviders() ([]providers.Provider, error) {
	var out []providers.Provider
	add := func(name string, p providers.Provider, err error) error {
		if errors.Is(err, errors.ErrProviderUnavailable) {
			a.logger.Debug().Str("provider", name).Msg("Provider not configured, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	}

	g, err := google.New(google.Config{
		APIKey:  a.config.GoogleMapsAPIKey,
		Timeout: a.config.GoogleTimeout,
		Logger:  a.logger,
	})
	if err := add(google.Name, g, err); err != nil {
		return nil, err
	}

	es, err := a.SearchIndex()
	if err := add(elastic.Name, es, err); err != nil {
		return nil, err
	}

	acc, err := accessibility.New(accessibility.Config{
		BaseURL: a.config.AccessibilityURL,
		APIKey:  a.config.AccessibilityAPIKey,
		Logger:  a.logger,
	})
	if err := add(accessibility.DefaultName, acc, err); err != nil {
		return nil, err
	}

	return out, nil
}

// SearchIndex returns the search-index provider. Without a configured URL it
// returns errors.ErrProviderUnavailable.
func (a *App) SearchIndex() (*elastic.Provider, error) {
	return elastic.New(elastic.Config{
		URL:    a.config.ElasticsearchURL,
		Index:  a.config.ElasticsearchIndex,
		Logger: a.logger,
	})
}

// Indexer returns the search index that imported places are mirrored to,
// creating the index when it does not exist.
func (a *App) Indexer(ctx context.Context) (importer.Indexer, error) {
	es, err := a.SearchIndex()
	if err != nil {
		return nil, err
	}
	if err := es.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return es, nil
}

// ObjectStore returns the MinIO client used for s3:// import sources.
func (a *App) ObjectStore() (importer.ObjectGetter, error) {
	store, err := importer.NewMinioStore(importer.MinioConfig{
		Endpoint:  a.config.MinioEndpoint,
		AccessKey: a.config.MinioAccessKey,
		SecretKey: a.config.MinioSecretKey,
		UseSSL:    a.config.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// ObservationReader returns the Kafka reader for the observations topic.
func (a *App) ObservationReader() (stream.Reader, error) {
	r, err := stream.NewReader(stream.ReaderConfig{
		Brokers: a.config.KafkaBrokers,
		Topic:   a.config.KafkaObservationsTopic,
		GroupID: a.config.KafkaGroupID,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// EventSink returns a subscriber that publishes link events to Kafka, or
// nil when no brokers are configured.
func (a *App) EventSink() (events.Subscriber, error) {
	if len(a.config.KafkaBrokers) == 0 {
		return nil, nil
	}
	w, err := stream.NewWriter(stream.WriterConfig{
		Brokers: a.config.KafkaBrokers,
		Topic:   a.config.KafkaEventsTopic,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, err
	}
	return stream.NewPublisher(w, a.logger), nil
}
