// Package catalogtest provides a behavioural test suite that every
// catalog.Store implementation must pass.
package catalogtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

// Factory returns an empty store. The store is closed by the suite.
type Factory func(t *testing.T) catalog.Store

// Layers seeded by the suite.
var Layers = []places.Layer{
	{Slug: "accessibility", Name: "Accessibility", Icon: "wheelchair"},
	{Slug: "reviews", Name: "Reviews", Icon: "star"},
}

// Run executes the suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	setup := func(t *testing.T) (context.Context, catalog.Store) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		ctx := context.Background()
		require.NoError(t, s.UpsertLayers(ctx, Layers))
		return ctx, s
	}

	t.Run("insert and get place", func(t *testing.T) {
		ctx, s := setup(t)
		p := samplePlace("p1", "Blue Bottle Coffee", 37.7763, -122.4233)

		require.NoError(t, s.InsertPlace(ctx, p))
		got, err := s.GetPlace(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Blue Bottle Coffee", got.Name)
		assert.Equal(t, []string{"bluebottle.com"}, got.Contacts.Websites)
		assert.Equal(t, "osm-1", got.Sources["osm"].ExternalID)
		assert.Equal(t, []string{"wifi", "seats"}, got.Attributes.Keys())
		assert.Nil(t, got.Distance)

		err = s.InsertPlace(ctx, p)
		assert.True(t, errors.IsAlreadyExists(err), "got %v", err)

		missing, err := s.GetPlace(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("search orders by distance", func(t *testing.T) {
		ctx, s := setup(t)
		_, err := s.UpsertPlaces(ctx, []places.Place{
			*samplePlace("near", "Near Cafe", 40.7001, -74.0000),
			*samplePlace("mid", "Mid Cafe", 40.7030, -74.0000),
			*samplePlace("far", "Far Cafe", 40.7500, -74.0000),
		})
		require.NoError(t, err)

		got, err := s.Search(ctx, places.SearchQuery{Lat: 40.7, Lon: -74.0, Radius: 1000})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "near", got[0].ID)
		assert.Equal(t, "mid", got[1].ID)
		require.NotNil(t, got[0].Distance)
		assert.InDelta(t, 11.1, *got[0].Distance, 0.5)

		got, err = s.Search(ctx, places.SearchQuery{Lat: 40.7, Lon: -74.0, Radius: 1000, Query: "mid"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "mid", got[0].ID)

		got, err = s.Search(ctx, places.SearchQuery{Lat: 40.7, Lon: -74.0, Radius: 1000, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "mid", got[0].ID)
	})

	t.Run("fuzzy match", func(t *testing.T) {
		ctx, s := setup(t)
		require.NoError(t, s.InsertPlace(ctx, samplePlace("p1", "Joe's Pizza", 40.7306, -73.9866)))
		require.NoError(t, s.InsertPlace(ctx, samplePlace("p2", "Pharmacy", 40.7307, -73.9866)))

		got, err := s.FuzzyMatch(ctx, 40.7307, -73.9867, "Joes Pizza", 50)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "p1", got.ID)

		got, err = s.FuzzyMatch(ctx, 40.7400, -73.9866, "Joes Pizza", 50)
		require.NoError(t, err)
		assert.Nil(t, got, "outside radius")

		got, err = s.FuzzyMatch(ctx, 40.7306, -73.9866, "Hardware Store", 50)
		require.NoError(t, err)
		assert.Nil(t, got, "name too different")
	})

	t.Run("matches across the antimeridian", func(t *testing.T) {
		ctx, s := setup(t)
		require.NoError(t, s.InsertPlace(ctx, samplePlace("fj1", "Island Cafe", -16.5, -179.9998)))

		got, err := s.FuzzyMatch(ctx, -16.5, 179.9998, "Island Cafe", 50)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "fj1", got.ID)

		found, err := s.Search(ctx, places.SearchQuery{Lat: -16.5, Lon: 179.9995, Radius: 500})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.NotNil(t, found[0].Distance)
		assert.InDelta(t, 75, *found[0].Distance, 5)
	})

	t.Run("link lifecycle", func(t *testing.T) {
		ctx, s := setup(t)
		require.NoError(t, s.InsertPlace(ctx, samplePlace("p1", "Library", 51.5, -0.12)))

		none, err := s.GetLink(ctx, "p1", "accessibility")
		require.NoError(t, err)
		assert.Nil(t, none)

		data := places.AttributesFromMap(map[string]any{"ramp": true})
		link, err := s.CreateLink(ctx, "p1", "accessibility", "acc-1", data)
		require.NoError(t, err)
		assert.NotEmpty(t, link.ID)
		assert.Equal(t, "accessibility", link.LayerSlug)
		assert.False(t, link.LastSyncedAt.IsZero())

		_, err = s.CreateLink(ctx, "p1", "accessibility", "acc-1", data)
		assert.True(t, errors.IsAlreadyExists(err), "got %v", err)

		_, err = s.CreateLink(ctx, "p1", "unknown", "x", nil)
		assert.True(t, errors.IsNotFound(err), "got %v", err)

		synced := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.UpdateLink(ctx, link.ID, places.AttributesFromMap(map[string]any{"ramp": false}), synced))
		got, err := s.GetLink(ctx, "p1", "accessibility")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, link.ID, got.ID)
		ramp, _ := got.LayerData.Get("ramp")
		assert.Equal(t, false, ramp)
		assert.True(t, synced.Equal(got.LastSyncedAt))

		require.NoError(t, s.TouchLink(ctx, link.ID))
		touched, err := s.GetLink(ctx, "p1", "accessibility")
		require.NoError(t, err)
		assert.False(t, touched.LastSyncedAt.Equal(synced))

		err = s.TouchLink(ctx, "missing-link")
		assert.True(t, errors.IsNotFound(err), "got %v", err)
	})

	t.Run("concurrent create keeps one link", func(t *testing.T) {
		ctx, s := setup(t)
		require.NoError(t, s.InsertPlace(ctx, samplePlace("p1", "Museum", 48.86, 2.33)))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateLink(ctx, "p1", "reviews", "r", nil)
				if err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
	})

	t.Run("batch load links", func(t *testing.T) {
		ctx, s := setup(t)
		require.NoError(t, s.InsertPlace(ctx, samplePlace("p1", "A", 1, 1)))
		require.NoError(t, s.InsertPlace(ctx, samplePlace("p2", "B", 2, 2)))
		_, err := s.CreateLink(ctx, "p1", "reviews", "r1", places.AttributesFromMap(map[string]any{"stars": 4.5}))
		require.NoError(t, err)
		_, err = s.CreateLink(ctx, "p1", "accessibility", "a1", nil)
		require.NoError(t, err)

		got, err := s.BatchLoadLinks(ctx, []string{"p1", "p2", "p3"})
		require.NoError(t, err)
		require.Len(t, got["p1"], 2)
		assert.Equal(t, "accessibility", got["p1"][0].Slug)
		assert.Equal(t, "Reviews", got["p1"][1].Name)
		assert.Equal(t, "star", got["p1"][1].Icon)
		assert.Empty(t, got["p2"])

		empty, err := s.BatchLoadLinks(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("layers", func(t *testing.T) {
		ctx, s := setup(t)
		before, err := s.Layer(ctx, "reviews")
		require.NoError(t, err)
		require.NotNil(t, before)

		require.NoError(t, s.UpsertLayers(ctx, []places.Layer{{Slug: "reviews", Name: "Ratings"}}))
		after, err := s.Layer(ctx, "reviews")
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, "Ratings", after.Name)

		all, err := s.Layers(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "accessibility", all[0].Slug)

		missing, err := s.Layer(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("upsert and clear", func(t *testing.T) {
		ctx, s := setup(t)
		n, err := s.UpsertPlaces(ctx, []places.Place{
			*samplePlace("a", "A", 1, 1),
			*samplePlace("b", "B", 1, 1),
			*samplePlace("c", "C", 1, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		renamed := samplePlace("a", "A2", 1, 1)
		_, err = s.UpsertPlaces(ctx, []places.Place{*renamed})
		require.NoError(t, err)
		got, err := s.GetPlace(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "A2", got.Name)

		deleted, err := s.ClearPlaces(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		got, err = s.GetPlace(ctx, "a")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ping", func(t *testing.T) {
		ctx, s := setup(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

func samplePlace(id, name string, lat, lon float64) *places.Place {
	attrs := places.NewAttributes()
	attrs.Set("wifi", true)
	attrs.Set("seats", 40.0)
	return &places.Place{
		ID:         id,
		Name:       name,
		Lat:        lat,
		Lon:        lon,
		Confidence: 1.0,
		Category:   places.Category{Primary: "cafe"},
		Contacts:   places.Contacts{Websites: []string{"bluebottle.com"}},
		Sources:    map[string]places.SourceRef{"osm": {ExternalID: "osm-1"}},
		Attributes: attrs,
	}
}
