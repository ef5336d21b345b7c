package placemap

import (
	"context"
	"math"
	"time"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/similarity"
)

// Search implements Client.
func (c *client) Search(ctx context.Context, q places.SearchQuery) (*places.Result, error) {
	start := time.Now()

	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := SearchKey(q)
	log := c.logger.With().Str("operation", "search").Str("cache_key", key).Logger()

	if cached, ok := c.cachedResult(ctx, key); ok {
		cached.Metadata.Cached = true
		cached.Metadata.LatencyMS = time.Since(start).Milliseconds()
		log.Debug().Int("places", len(cached.Places)).Msg("Search served from cache")
		return cached, nil
	}

	auth, err := c.authoritative.Search(ctx, q)
	if err != nil {
		return nil, errors.NewCatalogUnavailableError("search", err)
	}
	authName := c.authoritative.Name()

	union := make([]places.Place, 0, len(auth.Places))
	for i := range auth.Places {
		p := auth.Places[i].Clone()
		if _, ok := p.Sources[authName]; !ok {
			p.AddSource(authName, places.SourceRef{ExternalID: p.ID})
		}
		union = append(union, *p)
	}

	statuses := []places.ProviderStatus{{
		Name:      authName,
		Count:     len(auth.Places),
		LatencyMS: auth.Metadata.LatencyMS,
	}}

	for _, r := range c.fanout(ctx, q) {
		statuses = append(statuses, r.status())
		if len(r.places) == 0 {
			continue
		}
		union = append(union, c.link(ctx, r)...)
	}

	for i := range union {
		if union[i].Distance == nil {
			union[i].WithDistance(similarity.Distance(q.Lat, q.Lon, union[i].Lat, union[i].Lon))
		}
	}

	merged := c.merger.Merge(union, q.Limit)
	c.attachLayers(ctx, merged)

	res := places.NewResult(merged, meanConfidence(merged))
	res.Metadata.Providers = statuses

	if err := c.cache.Set(ctx, key, cloneResult(res), c.config.searchTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache search result")
	}

	res.Metadata.LatencyMS = time.Since(start).Milliseconds()
	log.Debug().
		Int("authoritative", len(auth.Places)).
		Int("union", len(union)).
		Int("places", len(merged)).
		Int64("latency_ms", res.Metadata.LatencyMS).
		Msg("Search finished")
	return res, nil
}

// SearchBounds implements Client.
func (c *client) SearchBounds(ctx context.Context, b places.Bounds, q places.SearchQuery) (*places.Result, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	q.Lat, q.Lon = b.Center()
	q.Radius = math.Min(math.Max(b.Radius(), 1), constants.MaxSearchRadius)

	res, err := c.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	inside := make([]places.Place, 0, len(res.Places))
	for _, p := range res.Places {
		if b.Contains(p.Lat, p.Lon) {
			inside = append(inside, p)
		}
	}
	res.Places = inside
	res.Metadata.Count = len(inside)
	res.Metadata.Confidence = meanConfidence(inside)
	return res, nil
}

// link resolves a provider's places to canonical places. Without a catalog
// the places are used as they are.
func (c *client) link(ctx context.Context, r providerResult) []places.Place {
	name := r.provider.Name()
	if c.linker == nil {
		out := make([]places.Place, len(r.places))
		for i := range r.places {
			p := r.places[i].Clone()
			if _, ok := p.Sources[name]; !ok {
				p.AddSource(name, places.SourceRef{ExternalID: p.ID})
			}
			out[i] = *p
		}
		return out
	}

	report := c.linker.LinkAll(ctx, r.places, name)
	if len(report.Failures) > 0 {
		c.logger.Warn().
			Str("provider", name).
			Int("failed", len(report.Failures)).
			Int("linked", len(report.Places)).
			Msg("Some provider places could not be linked")
	}
	return report.Places
}

// attachLayers loads the overlays of every place in one call. Failure leaves
// the places without overlays.
func (c *client) attachLayers(ctx context.Context, ps []places.Place) {
	if c.overlays == nil || len(ps) == 0 {
		return
	}
	ids := make([]string, 0, len(ps))
	for i := range ps {
		if ps[i].ID != "" {
			ids = append(ids, ps[i].ID)
		}
	}
	overlays, err := c.overlays.BatchLoadLinks(ctx, ids)
	if err != nil {
		c.logger.Warn().Err(err).Int("places", len(ids)).Msg("Failed to load layer overlays")
		return
	}
	for i := range ps {
		if ls, ok := overlays[ps[i].ID]; ok {
			ps[i].Layers = ls
		}
	}
}

// cachedResult returns a private copy of a cached result. Cache errors are
// treated as misses.
func (c *client) cachedResult(ctx context.Context, key string) (*places.Result, bool) {
	v, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	res, ok := v.(*places.Result)
	if !ok || res == nil {
		return nil, false
	}
	return cloneResult(res), true
}

func cloneResult(r *places.Result) *places.Result {
	out := &places.Result{Metadata: r.Metadata}
	out.Metadata.Providers = append([]places.ProviderStatus(nil), r.Metadata.Providers...)
	out.Places = make([]places.Place, len(r.Places))
	for i := range r.Places {
		out.Places[i] = *r.Places[i].Clone()
	}
	return out
}

func meanConfidence(ps []places.Place) float64 {
	if len(ps) == 0 {
		return 0
	}
	var sum float64
	for i := range ps {
		sum += ps[i].Confidence
	}
	return sum / float64(len(ps))
}
