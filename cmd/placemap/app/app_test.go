package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/internal/catalog/memory"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
)

func testConfig() *Config {
	return &Config{
		CatalogDriver: DriverMemory,
		LogLevel:      "error",
		LogFormat:     "json",
		LogOutput:     "stderr",
	}
}

// newTestApp returns an app over an in-memory catalog holding one place.
func newTestApp(t *testing.T) (*App, *memory.Store) {
	t.Helper()
	store := memory.New(memory.WithLayers(places.Layer{Slug: "google", Name: "Google"}))
	require.NoError(t, store.InsertPlace(context.Background(), &places.Place{
		ID:         "p1",
		Name:       "Joe's Pizza",
		Lat:        40.7305,
		Lon:        -74.0021,
		Category:   places.Category{Primary: "restaurant"},
		Confidence: 1,
	}))

	app, err := New("1.0.0", "abc123", "2024-01-01", "test",
		WithConfig(testConfig()),
		WithCatalog(store),
		WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	return app, store
}

// execute runs the CLI and returns everything written to stdout.
func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := app.createRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestApp_New(t *testing.T) {
	app, _ := newTestApp(t)

	assert.Equal(t, "1.0.0", app.Version())
	assert.Equal(t, "abc123", app.Commit())
	assert.Equal(t, "2024-01-01", app.Date())
	assert.Equal(t, "test", app.BuiltBy())
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Config())
}

func TestApp_Placemap_Singleton(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	clients := make([]any, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pm, err := app.Placemap(ctx)
			assert.NoError(t, err)
			clients[i] = pm
		}(i)
	}
	wg.Wait()

	for _, c := range clients[1:] {
		assert.Same(t, clients[0], c)
	}
}

func TestApp_Catalog(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig()
		cfg.CatalogDriver = "mongo"
		app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
		require.NoError(t, err)

		_, err = app.Catalog(ctx)
		var cfgErr *errors.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("postgres requires a url", func(t *testing.T) {
		cfg := testConfig()
		cfg.CatalogDriver = DriverPostgres
		app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
		require.NoError(t, err)

		_, err = app.Catalog(ctx)
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("memory driver seeds mapped layers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`sources:
  wheelmap: accessibility
layers:
  - slug: accessibility
    name: Accessibility
    icon: wheelchair
`), 0o600))

		cfg := testConfig()
		cfg.LayerMapping = path
		app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
		require.NoError(t, err)

		store, err := app.Catalog(ctx)
		require.NoError(t, err)
		layer, err := store.Layer(ctx, "accessibility")
		require.NoError(t, err)
		require.NotNil(t, layer)
		assert.Equal(t, "Accessibility", layer.Name)

		again, err := app.Catalog(ctx)
		require.NoError(t, err)
		assert.Same(t, store, again)

		require.NoError(t, app.Shutdown(ctx))
	})

	t.Run("bad mapping file", func(t *testing.T) {
		cfg := testConfig()
		cfg.LayerMapping = filepath.Join(t.TempDir(), "missing.yaml")
		app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
		require.NoError(t, err)

		_, err = app.Catalog(ctx)
		assert.Error(t, err)
	})
}

func TestApp_ExternalProvidersSkipUnconfigured(t *testing.T) {
	cfg := testConfig()
	app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	ps, err := app.externalProviders()
	require.NoError(t, err)
	assert.Empty(t, ps)

	cfg.ElasticsearchURL = "http://localhost:9200"
	cfg.AccessibilityURL = "http://localhost:8081"
	ps, err = app.externalProviders()
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "elastic", ps[0].Name())
	assert.Equal(t, "accessibility", ps[1].Name())
}

func TestApp_EventSink(t *testing.T) {
	cfg := testConfig()
	app, err := New("dev", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	sink, err := app.EventSink()
	require.NoError(t, err)
	assert.Nil(t, sink, "no brokers, no sink")

	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaEventsTopic = "place-links"
	sink, err = app.EventSink()
	require.NoError(t, err)
	assert.NotNil(t, sink)
}

func TestApp_ObservationReaderRequiresBrokers(t *testing.T) {
	app, err := New("dev", "", "", "", WithConfig(testConfig()), WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	_, err = app.ObservationReader()
	assert.Error(t, err)
}

func TestApp_Shutdown(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	_, err := app.Placemap(ctx)
	require.NoError(t, err)
	require.NoError(t, app.Shutdown(ctx))
	assert.Nil(t, app.catalog)
	assert.Nil(t, app.placemap)

	// A second shutdown is a no-op
	assert.NoError(t, app.Shutdown(ctx))
}
