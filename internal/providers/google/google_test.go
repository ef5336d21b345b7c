package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

const nearbyBody = `{
  "status": "OK",
  "results": [
    {
      "place_id": "ChIJb8Jg9pZYwokR",
      "name": "The Metropolitan Museum of Art",
      "geometry": {"location": {"lat": 40.7794, "lng": -73.9632}},
      "types": ["point_of_interest", "museum", "establishment", "tourist_attraction"],
      "rating": 4.8,
      "user_ratings_total": 120000,
      "business_status": "OPERATIONAL",
      "vicinity": "1000 5th Avenue, New York"
    },
    {
      "place_id": "ChIJ2",
      "name": "Cafe",
      "geometry": {"location": {"lat": 40.7800, "lng": -73.9630}},
      "types": ["cafe"]
    }
  ]
}`

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/nearbysearch/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "museum", r.URL.Query().Get("keyword"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nearbyBody))
	})
	mux.HandleFunc("/maps/api/place/details/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("placeid") == "missing" || r.URL.Query().Get("place_id") == "missing" {
			_, _ = w.Write([]byte(`{"status": "NOT_FOUND"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status": "OK", "result": {
			"place_id": "ChIJb8Jg9pZYwokR",
			"name": "The Metropolitan Museum of Art",
			"geometry": {"location": {"lat": 40.7794, "lng": -73.9632}},
			"types": ["museum"],
			"website": "https://www.metmuseum.org",
			"international_phone_number": "+1 212-535-7710",
			"business_status": "CLOSED_TEMPORARILY"
		}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return p
}

func TestNewUnconfigured(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.IsProviderUnavailable(err))
}

func TestSearch(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.Search(context.Background(), places.SearchQuery{Lat: 40.7794, Lon: -73.9632, Radius: 500, Query: "museum", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Places, 1)

	got := res.Places[0]
	assert.Equal(t, "ChIJb8Jg9pZYwokR", got.ID)
	assert.Equal(t, places.Category{Primary: "museum", Secondary: []string{"tourist_attraction"}}, got.Category)
	assert.Equal(t, "open", got.OperatingStatus)
	assert.Equal(t, "1000 5th Avenue, New York", got.Address.Street)
	assert.Equal(t, []string{"rating", "user_ratings_total"}, got.Attributes.Keys())
	assert.Equal(t, "ChIJb8Jg9pZYwokR", got.Sources[Name].ExternalID)
	require.NotNil(t, got.Distance)
	assert.True(t, p.HealthCheck(context.Background()))
}

func TestGetPlace(t *testing.T) {
	p := newTestProvider(t)

	got, err := p.GetPlace(context.Background(), "ChIJb8Jg9pZYwokR")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"https://www.metmuseum.org"}, got.Contacts.Websites)
	assert.Equal(t, []string{"+1 212-535-7710"}, got.Contacts.Phones)
	assert.Equal(t, "temporarily_closed", got.OperatingStatus)

	got, err = p.GetPlace(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHealthFollowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "OVER_QUERY_LIMIT", "error_message": "quota"}`))
	}))
	defer srv.Close()

	p, err := New(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	require.True(t, p.HealthCheck(context.Background()))

	_, err = p.Search(context.Background(), places.SearchQuery{Lat: 1, Lon: 1})
	require.Error(t, err)
	assert.False(t, p.HealthCheck(context.Background()))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, places.Category{}, category([]string{"establishment"}))
	assert.Equal(t, places.Category{Primary: "cafe", Secondary: []string{"bakery"}},
		category([]string{"point_of_interest", "cafe", "bakery"}))
}
