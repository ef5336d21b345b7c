package placemap_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/internal/catalog/memory"
	"github.com/agentstation/placemap/pkg/cache"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/linker"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
)

// fakeProvider is a scriptable providers.Provider.
type fakeProvider struct {
	name     string
	priority int
	timeout  time.Duration
	search   func(ctx context.Context, q places.SearchQuery) (*places.Result, error)
	byID     map[string]*places.Place
	healthy  bool
	panics   bool

	searches atomic.Int32
	lookups  atomic.Int32
}

func (f *fakeProvider) Name() string           { return f.name }
func (f *fakeProvider) Priority() int          { return f.priority }
func (f *fakeProvider) Timeout() time.Duration { return f.timeout }

func (f *fakeProvider) Search(ctx context.Context, q places.SearchQuery) (*places.Result, error) {
	f.searches.Add(1)
	if f.search == nil {
		return places.NewResult(nil, 0.8), nil
	}
	return f.search(ctx, q)
}

func (f *fakeProvider) GetPlace(_ context.Context, id string) (*places.Place, error) {
	f.lookups.Add(1)
	if p, ok := f.byID[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (f *fakeProvider) HealthCheck(context.Context) bool {
	if f.panics {
		panic("probe exploded")
	}
	return f.healthy
}

func returning(ps ...places.Place) func(context.Context, places.SearchQuery) (*places.Result, error) {
	return func(context.Context, places.SearchQuery) (*places.Result, error) {
		return places.NewResult(ps, 0.8), nil
	}
}

const (
	museumLat = 40.7794
	museumLon = -73.9632
)

func museum() places.Place {
	return places.Place{
		ID:         "p1",
		Name:       "Metropolitan Museum of Art",
		Lat:        museumLat,
		Lon:        museumLon,
		Category:   places.Category{Primary: "museum"},
		Confidence: 1,
	}
}

func newStore(t *testing.T, ps ...places.Place) *memory.Store {
	t.Helper()
	store := memory.New(memory.WithLayers(
		places.Layer{Slug: "google", Name: "Google"},
		places.Layer{Slug: "accessibility", Name: "Accessibility"},
	))
	for i := range ps {
		require.NoError(t, store.InsertPlace(context.Background(), &ps[i]))
	}
	return store
}

func newClient(t *testing.T, opts ...placemap.Option) placemap.Client {
	t.Helper()
	c, err := placemap.New(opts...)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("requires catalog or authoritative provider", func(t *testing.T) {
		_, err := placemap.New()
		require.Error(t, err)
	})

	t.Run("rejects non-positive link radius", func(t *testing.T) {
		_, err := placemap.New(placemap.WithCatalog(newStore(t)), placemap.WithLinkRadius(0))
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("rejects provider named like the catalog", func(t *testing.T) {
		_, err := placemap.New(
			placemap.WithCatalog(newStore(t)),
			placemap.WithProviders(&fakeProvider{name: "catalog"}),
		)
		require.Error(t, err)
	})

	t.Run("rejects duplicate providers", func(t *testing.T) {
		_, err := placemap.New(
			placemap.WithCatalog(newStore(t)),
			placemap.WithProviders(&fakeProvider{name: "google"}, &fakeProvider{name: "google"}),
		)
		require.Error(t, err)
	})
}

func TestSearchMergesProviderDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, museum())

	// 30 m north, one typo in the name
	google := &fakeProvider{name: "google", priority: 10, timeout: time.Second, search: returning(places.Place{
		ID:         "g-123",
		Name:       "Metropolitan Museun of Art",
		Lat:        museumLat + 0.00027,
		Lon:        museumLon,
		Category:   places.Category{Primary: "museum"},
		Confidence: 0.8,
		Attributes: places.AttributesFromMap(map[string]any{"rating": 4.8}),
	})}

	c := newClient(t, placemap.WithCatalog(store), placemap.WithProviders(google))

	res, err := c.Search(ctx, places.SearchQuery{Lat: museumLat, Lon: museumLon, Radius: 500})
	require.NoError(t, err)
	require.Len(t, res.Places, 1)

	got := res.Places[0]
	assert.Equal(t, "p1", got.ID)
	assert.Contains(t, got.Sources, "catalog")
	assert.Contains(t, got.Sources, "google")
	assert.Equal(t, "g-123", got.Sources["google"].ExternalID)
	require.NotNil(t, got.Distance)
	require.Len(t, got.Layers, 1)
	assert.Equal(t, "google", got.Layers[0].Slug)

	assert.False(t, res.Metadata.Cached)
	assert.Equal(t, 1, res.Metadata.Count)
	require.Len(t, res.Metadata.Providers, 2)
	assert.Equal(t, "catalog", res.Metadata.Providers[0].Name)
	assert.Equal(t, "google", res.Metadata.Providers[1].Name)
	assert.Empty(t, res.Metadata.Providers[1].Error)

	// the catalog is the only place store; no new canonical place was created
	assert.Equal(t, 1, store.Len())
}

func TestSearchCache(t *testing.T) {
	ctx := context.Background()
	google := &fakeProvider{name: "google", timeout: time.Second}
	c := newClient(t,
		placemap.WithCatalog(newStore(t, museum())),
		placemap.WithProviders(google),
		placemap.WithCache(cache.New(time.Minute, time.Minute)),
	)
	q := places.SearchQuery{Lat: museumLat, Lon: museumLon}

	first, err := c.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, first.Metadata.Cached)

	// mutating a returned result must not leak into the cache
	first.Places[0].Name = "changed"

	second, err := c.Search(ctx, q)
	require.NoError(t, err)
	assert.True(t, second.Metadata.Cached)
	assert.Equal(t, "Metropolitan Museum of Art", second.Places[0].Name)
	assert.Equal(t, int32(1), google.searches.Load())
}

func TestSearchCatalogFailureIsFatal(t *testing.T) {
	broken := &fakeProvider{name: "catalog", search: func(context.Context, places.SearchQuery) (*places.Result, error) {
		return nil, fmt.Errorf("connection refused")
	}}
	c := newClient(t, placemap.WithAuthoritative(broken))

	_, err := c.Search(context.Background(), places.SearchQuery{Lat: 1, Lon: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCatalogUnavailable(err))
}

func TestSearchToleratesProviderFailures(t *testing.T) {
	failing := &fakeProvider{name: "failing", timeout: time.Second,
		search: func(context.Context, places.SearchQuery) (*places.Result, error) {
			return nil, fmt.Errorf("quota exceeded")
		}}
	panicking := &fakeProvider{name: "panicking", timeout: time.Second,
		search: func(context.Context, places.SearchQuery) (*places.Result, error) {
			panic("boom")
		}}
	slow := &fakeProvider{name: "slow", timeout: 20 * time.Millisecond,
		search: func(context.Context, places.SearchQuery) (*places.Result, error) {
			time.Sleep(300 * time.Millisecond)
			return places.NewResult([]places.Place{{ID: "late", Name: "Too Late"}}, 0.8), nil
		}}

	logs := logging.NewTestLogger(t)
	c := newClient(t,
		placemap.WithCatalog(newStore(t, museum())),
		placemap.WithProviders(failing, panicking, slow),
		placemap.WithLogger(logs.Logger),
	)

	start := time.Now()
	res, err := c.Search(context.Background(), places.SearchQuery{Lat: museumLat, Lon: museumLon})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	require.Len(t, res.Places, 1)
	assert.Equal(t, "p1", res.Places[0].ID)

	errs := map[string]string{}
	for _, s := range res.Metadata.Providers {
		errs[s.Name] = s.Error
	}
	assert.Empty(t, errs["catalog"])
	assert.Contains(t, errs["failing"], "quota exceeded")
	assert.Contains(t, errs["panicking"], "panic")
	assert.Contains(t, errs["slow"], "deadline")

	messages := map[string]string{}
	for _, e := range logs.Entries() {
		if name, ok := e["provider"].(string); ok && e["message"] != "Provider search finished" {
			messages[name] = e["message"].(string)
		}
	}
	assert.Equal(t, "Provider search timed out", messages["slow"])
	assert.Equal(t, "Provider search failed", messages["failing"])
	assert.Equal(t, "Provider search failed", messages["panicking"])
}

func TestSearchProviderDetachedFromCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the request is canceled while the authoritative query runs
	auth := &fakeProvider{name: "catalog", search: func(context.Context, places.SearchQuery) (*places.Result, error) {
		cancel()
		return places.NewResult(nil, 1), nil
	}}

	var sawCanceled atomic.Bool
	google := &fakeProvider{name: "google", timeout: time.Second,
		search: func(ctx context.Context, _ places.SearchQuery) (*places.Result, error) {
			sawCanceled.Store(ctx.Err() != nil)
			return places.NewResult([]places.Place{{ID: "g1", Name: "Cafe", Lat: 1, Lon: 1}}, 0.8), nil
		}}
	c := newClient(t, placemap.WithAuthoritative(auth), placemap.WithProviders(google))

	res, err := c.Search(ctx, places.SearchQuery{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.False(t, sawCanceled.Load())
	require.Len(t, res.Places, 1)
	assert.Contains(t, res.Places[0].Sources, "google")
}

func TestSearchValidation(t *testing.T) {
	c := newClient(t, placemap.WithCatalog(newStore(t)))

	_, err := c.Search(context.Background(), places.SearchQuery{Lat: 91, Lon: 0})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = c.Search(context.Background(), places.SearchQuery{Lat: 0, Lon: 0, Radius: 60000})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = c.Search(context.Background(), places.SearchQuery{Lat: 0, Lon: 0, Radius: math.NaN()})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestSearchLinksNewPlaces(t *testing.T) {
	store := newStore(t, museum())
	google := &fakeProvider{name: "google", timeout: time.Second, search: returning(places.Place{
		ID:   "g-900",
		Name: "Corner Bakery",
		Lat:  museumLat + 0.002,
		Lon:  museumLon,
	})}
	c := newClient(t, placemap.WithCatalog(store), placemap.WithProviders(google))

	var mu sync.Mutex
	var created []string
	var linked []placemap.LinkEvent
	c.OnPlaceCreated(func(p places.Place, source string) {
		mu.Lock()
		defer mu.Unlock()
		created = append(created, p.Name+"@"+source)
	})
	c.OnLinkCreated(func(e placemap.LinkEvent) {
		mu.Lock()
		defer mu.Unlock()
		linked = append(linked, e)
	})

	res, err := c.Search(context.Background(), places.SearchQuery{Lat: museumLat, Lon: museumLon})
	require.NoError(t, err)
	assert.Len(t, res.Places, 2)
	assert.Equal(t, 2, store.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Corner Bakery@google"}, created)
	require.Len(t, linked, 1)
	assert.Equal(t, "google", linked[0].Layer)
	assert.Equal(t, "g-900", linked[0].Link.ExternalID)
}

func TestSearchBounds(t *testing.T) {
	outside := places.Place{ID: "p2", Name: "Guggenheim", Lat: museumLat + 0.006, Lon: museumLon, Confidence: 1}
	c := newClient(t, placemap.WithCatalog(newStore(t, museum(), outside)))

	b := places.Bounds{North: museumLat + 0.001, South: museumLat - 0.001, East: museumLon + 0.01, West: museumLon - 0.01}
	res, err := c.SearchBounds(context.Background(), b, places.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, res.Places, 1)
	assert.Equal(t, "p1", res.Places[0].ID)
	assert.Equal(t, 1, res.Metadata.Count)

	_, err = c.SearchBounds(context.Background(), places.Bounds{North: 1, South: 2}, places.SearchQuery{})
	assert.True(t, errors.IsValidationError(err))
}

func TestGetPlace(t *testing.T) {
	ctx := context.Background()
	first := &fakeProvider{name: "google", priority: 10,
		byID: map[string]*places.Place{"x1": {ID: "x1", Name: "From Google"}}}
	second := &fakeProvider{name: "elastic", priority: 20,
		byID: map[string]*places.Place{"x1": {ID: "x1", Name: "From Elastic"}}}
	c := newClient(t,
		placemap.WithCatalog(newStore(t, museum())),
		placemap.WithProviders(second, first),
	)

	t.Run("catalog first", func(t *testing.T) {
		p, err := c.GetPlace(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Metropolitan Museum of Art", p.Name)
		assert.Zero(t, first.lookups.Load())
	})

	t.Run("then by priority", func(t *testing.T) {
		p, err := c.GetPlace(ctx, "x1")
		require.NoError(t, err)
		assert.Equal(t, "From Google", p.Name)
		assert.Zero(t, second.lookups.Load())
	})

	t.Run("cached", func(t *testing.T) {
		before := first.lookups.Load()
		p, err := c.GetPlace(ctx, "x1")
		require.NoError(t, err)
		assert.Equal(t, "From Google", p.Name)
		assert.Equal(t, before, first.lookups.Load())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetPlace(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestHealthCheck(t *testing.T) {
	c := newClient(t,
		placemap.WithCatalog(newStore(t)),
		placemap.WithProviders(
			&fakeProvider{name: "google", healthy: true},
			&fakeProvider{name: "elastic"},
			&fakeProvider{name: "broken", panics: true},
		),
	)

	assert.Equal(t, map[string]bool{
		"catalog": true,
		"google":  true,
		"elastic": false,
		"broken":  false,
	}, c.HealthCheck(context.Background()))
}

func TestProviders(t *testing.T) {
	c := newClient(t,
		placemap.WithCatalog(newStore(t)),
		placemap.WithProviders(
			&fakeProvider{name: "elastic", priority: 20},
			&fakeProvider{name: "google", priority: 10},
		),
	)

	infos := c.Providers()
	require.Len(t, infos, 3)
	assert.Equal(t, "catalog", infos[0].Name)
	assert.True(t, infos[0].Authoritative)
	assert.Equal(t, "google", infos[1].Name)
	assert.Equal(t, "elastic", infos[2].Name)
	assert.False(t, infos[2].Authoritative)
}

func TestLinkRequiresCatalog(t *testing.T) {
	c := newClient(t, placemap.WithAuthoritative(&fakeProvider{name: "catalog"}))
	_, outcome, err := c.Link(context.Background(), &places.Place{Name: "x"}, "google")
	require.Error(t, err)
	assert.Equal(t, linker.Failed, outcome)
}

func TestSearchKey(t *testing.T) {
	q := places.SearchQuery{Lat: 40.7794, Lon: -73.9632, Radius: 1500, Query: "Pizza", Category: "Food", Limit: 20}
	assert.Equal(t, "search:40.779400:-73.963200:1500:pizza:food:20:0", placemap.SearchKey(q))
	assert.Equal(t, "place:abc", placemap.PlaceKey("abc"))
}
