package list

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/catalog/memory"
	"github.com/agentstation/placemap/pkg/places"
)

// downProvider is an external provider that never answers health probes.
type downProvider struct{}

func (downProvider) Name() string           { return "google" }
func (downProvider) Priority() int          { return 10 }
func (downProvider) Timeout() time.Duration { return time.Second }
func (downProvider) Search(context.Context, places.SearchQuery) (*places.Result, error) {
	return places.NewResult(nil, 0.8), nil
}
func (downProvider) GetPlace(context.Context, string) (*places.Place, error) { return nil, nil }
func (downProvider) HealthCheck(context.Context) bool                     { return false }

func mockApp(t *testing.T, format string, opts ...placemap.Option) *application.Mock {
	t.Helper()
	store := memory.New(memory.WithLayers(places.Layer{Slug: "accessibility", Name: "Accessibility"}))
	pm, err := placemap.New(append([]placemap.Option{placemap.WithCatalog(store)}, opts...)...)
	require.NoError(t, err)
	return &application.Mock{
		PlacemapFunc:     func(context.Context) (placemap.Client, error) { return pm, nil },
		OutputFormatFunc: func() string { return format },
	}
}

func TestHealthCommand(t *testing.T) {
	t.Run("degraded still succeeds", func(t *testing.T) {
		cmd := NewHealthCommand(mockApp(t, "json", placemap.WithProviders(downProvider{})))
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(nil)
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		assert.Contains(t, out.String(), `"status": "degraded"`)
		assert.Contains(t, out.String(), `"google": false`)
	})

	t.Run("strict fails when degraded", func(t *testing.T) {
		cmd := NewHealthCommand(mockApp(t, "table", placemap.WithProviders(downProvider{})))
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--strict"})
		assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "degraded")
		assert.Contains(t, out.String(), "unhealthy")
	})
}

func TestProvidersAndLayersCommands(t *testing.T) {
	app := mockApp(t, "table", placemap.WithProviders(downProvider{}))

	providers := NewProvidersCommand(app)
	var out bytes.Buffer
	providers.SetOut(&out)
	providers.SetArgs(nil)
	require.NoError(t, providers.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "authoritative")
	assert.Contains(t, out.String(), "google")

	layers := NewLayersCommand(app)
	out.Reset()
	layers.SetOut(&out)
	layers.SetArgs(nil)
	require.NoError(t, layers.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "accessibility")
}
