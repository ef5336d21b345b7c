package accessibility_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/internal/providers/accessibility"
	"github.com/agentstation/placemap/internal/transport"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /nodes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "40.779400", r.URL.Query().Get("lat"))
		assert.Equal(t, "museum", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"nodes": [
			{"id": "n1", "name": "Metropolitan Museum of Art", "lat": 40.7794, "lon": -73.9632,
			 "category": "museum", "wheelchair": "yes", "wheelchair_toilet": "yes", "city": "New York"},
			{"id": "", "name": "broken"}
		]}`))
	})
	mux.HandleFunc("GET /nodes/n1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"node": {"id": "n1", "name": "Metropolitan Museum of Art", "wheelchair": "limited"}}`))
	})
	mux.HandleFunc("GET /nodes/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *accessibility.Provider {
	t.Helper()
	p, err := accessibility.New(accessibility.Config{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Key:     transport.KeyConfig{Header: "X-Api-Key"},
	})
	require.NoError(t, err)
	return p
}

func TestNewUnconfigured(t *testing.T) {
	_, err := accessibility.New(accessibility.Config{})
	assert.True(t, errors.IsProviderUnavailable(err))
}

func TestSearch(t *testing.T) {
	p := newProvider(t, newServer(t))
	assert.Equal(t, accessibility.DefaultName, p.Name())

	res, err := p.Search(context.Background(), places.SearchQuery{Lat: 40.7794, Lon: -73.9632, Radius: 500, Query: "museum"})
	require.NoError(t, err)
	require.Len(t, res.Places, 1)

	got := res.Places[0]
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, "museum", got.Category.Primary)
	assert.Equal(t, "New York", got.Address.City)
	assert.Equal(t, []string{"wheelchair", "wheelchair_toilet"}, got.Attributes.Keys())
	assert.Equal(t, "n1", got.Sources["accessibility"].ExternalID)
	require.NotNil(t, got.Distance)
	assert.InDelta(t, 0, *got.Distance, 0.01)
}

func TestSearchOutsideCoverage(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	p, err := accessibility.New(accessibility.Config{
		BaseURL:  srv.URL,
		Coverage: &places.Bounds{North: 55, South: 47, East: 15, West: 5},
	})
	require.NoError(t, err)

	res, err := p.Search(context.Background(), places.SearchQuery{Lat: 40.7, Lon: -73.9})
	require.NoError(t, err)
	assert.Empty(t, res.Places)
	assert.False(t, called)
}

func TestGetPlace(t *testing.T) {
	p := newProvider(t, newServer(t))

	got, err := p.GetPlace(context.Background(), "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	v, _ := got.Attributes.Get("wheelchair")
	assert.Equal(t, "limited", v)

	got, err = p.GetPlace(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHealthCheck(t *testing.T) {
	p := newProvider(t, newServer(t))
	assert.True(t, p.HealthCheck(context.Background()))

	down, err := accessibility.New(accessibility.Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.False(t, down.HealthCheck(context.Background()))
}
