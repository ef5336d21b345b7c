// Package google is a place provider backed by the Google Places API.
package google

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
	"github.com/agentstation/placemap/pkg/similarity"
)

// Name is the source name of the provider.
const Name = "google"

// maxRadius is the largest radius the Places API accepts.
const maxRadius = 50000

// Config configures the provider.
type Config struct {
	APIKey   string          `json:"-" yaml:"-" mapstructure:"api_key"` // Required
	BaseURL  string          `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Priority int             `json:"priority" yaml:"priority" mapstructure:"priority"`
	Timeout  time.Duration   `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Language string          `json:"language,omitempty" yaml:"language,omitempty" mapstructure:"language"`
	Logger   *zerolog.Logger `json:"-" yaml:"-" mapstructure:"-"`
}

// Provider implements providers.Provider.
type Provider struct {
	cfg     Config
	client  *maps.Client
	logger  *zerolog.Logger
	healthy atomic.Bool
}

var _ providers.Provider = (*Provider)(nil)

// New creates the provider. Without an API key it returns
// errors.ErrProviderUnavailable.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.ErrProviderUnavailable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultProviderTimeout
	}
	if cfg.Priority == 0 {
		cfg.Priority = 10
	}

	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, errors.NewConfigError("google", "creating maps client", err)
	}

	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	p := &Provider{cfg: cfg, client: client, logger: logger}
	p.healthy.Store(true)
	return p, nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

// Priority implements providers.Provider.
func (p *Provider) Priority() int { return p.cfg.Priority }

// Timeout implements providers.Provider.
func (p *Provider) Timeout() time.Duration { return p.cfg.Timeout }

// Search implements providers.Provider with a nearby search.
func (p *Provider) Search(ctx context.Context, q places.SearchQuery) (*places.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	radius := q.Radius
	if radius <= 0 {
		radius = constants.DefaultSearchRadius
	}
	req := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: q.Lat, Lng: q.Lon},
		Radius:   uint(min(radius, maxRadius)),
		Keyword:  q.Query,
		Language: p.cfg.Language,
	}
	if q.Category != "" {
		req.Type = maps.PlaceType(strings.ToLower(q.Category))
	}

	start := time.Now()
	resp, err := p.client.NearbySearch(ctx, req)
	p.record(err)
	if err != nil {
		return nil, err
	}

	out := make([]places.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
		pl := fromSearchResult(r)
		pl.WithDistance(similarity.Distance(q.Lat, q.Lon, pl.Lat, pl.Lon))
		out = append(out, *pl)
	}

	res := places.NewResult(out, constants.ProviderPlaceConfidence)
	res.Metadata.LatencyMS = time.Since(start).Milliseconds()
	p.logger.Debug().Str("provider", Name).Int("places", len(out)).Msg("Google nearby search")
	return res, nil
}

// GetPlace implements providers.Provider with a details lookup. Unknown ids
// yield nil.
func (p *Provider) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	r, err := p.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: id, Language: p.cfg.Language})
	if err != nil {
		if isNotFound(err) {
			p.record(nil)
			return nil, nil
		}
		p.record(err)
		return nil, err
	}
	p.record(nil)
	if r.PlaceID == "" {
		return nil, nil
	}
	return fromDetails(r), nil
}

// HealthCheck implements providers.Provider. The Places API has no free
// probe, so health reflects the outcome of the most recent call.
func (p *Provider) HealthCheck(context.Context) bool {
	return p.healthy.Load()
}

// record tracks call outcomes for HealthCheck. Request-level failures such as
// an invalid query say nothing about availability.
func (p *Provider) record(err error) {
	switch {
	case err == nil:
		p.healthy.Store(true)
	case strings.Contains(err.Error(), "INVALID_REQUEST"):
	default:
		p.healthy.Store(false)
	}
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NOT_FOUND") || strings.Contains(msg, "INVALID_REQUEST")
}

func fromSearchResult(r maps.PlacesSearchResult) *places.Place {
	attrs := places.NewAttributes()
	if r.Rating > 0 {
		attrs.Set("rating", float64(r.Rating))
		attrs.Set("user_ratings_total", r.UserRatingsTotal)
	}
	if r.PriceLevel > 0 {
		attrs.Set("price_level", r.PriceLevel)
	}
	if r.OpeningHours != nil && r.OpeningHours.OpenNow != nil {
		attrs.Set("open_now", *r.OpeningHours.OpenNow)
	}

	street := r.Vicinity
	if street == "" {
		street = r.FormattedAddress
	}

	pl := &places.Place{
		ID:              r.PlaceID,
		Name:            r.Name,
		Lat:             r.Geometry.Location.Lat,
		Lon:             r.Geometry.Location.Lng,
		Category:        category(r.Types),
		Confidence:      constants.ProviderPlaceConfidence,
		Address:         places.Address{Street: street},
		OperatingStatus: operatingStatus(r.BusinessStatus),
		Attributes:      attrs,
	}
	pl.AddSource(Name, places.SourceRef{ExternalID: r.PlaceID})
	return pl
}

func fromDetails(r maps.PlaceDetailsResult) *places.Place {
	attrs := places.NewAttributes()
	if r.Rating > 0 {
		attrs.Set("rating", float64(r.Rating))
		attrs.Set("user_ratings_total", r.UserRatingsTotal)
	}
	if r.PriceLevel > 0 {
		attrs.Set("price_level", r.PriceLevel)
	}
	if r.URL != "" {
		attrs.Set("maps_url", r.URL)
	}

	pl := &places.Place{
		ID:              r.PlaceID,
		Name:            r.Name,
		Lat:             r.Geometry.Location.Lat,
		Lon:             r.Geometry.Location.Lng,
		Category:        category(r.Types),
		Confidence:      constants.ProviderPlaceConfidence,
		Address:         places.Address{Street: r.FormattedAddress},
		OperatingStatus: operatingStatus(r.BusinessStatus),
		Attributes:      attrs,
	}
	if r.Website != "" {
		pl.Contacts.Websites = []string{r.Website}
	}
	if phone := firstNonEmpty(r.InternationalPhoneNumber, r.FormattedPhoneNumber); phone != "" {
		pl.Contacts.Phones = []string{phone}
	}
	pl.AddSource(Name, places.SourceRef{ExternalID: r.PlaceID})
	return pl
}

// category keeps the first specific type as primary. Google appends generic
// types such as "point_of_interest" and "establishment" to every place.
func category(types []string) places.Category {
	var c places.Category
	for _, t := range types {
		switch t {
		case "point_of_interest", "establishment":
			continue
		}
		if c.Primary == "" {
			c.Primary = t
			continue
		}
		c.Secondary = append(c.Secondary, t)
	}
	return c
}

func operatingStatus(s string) string {
	switch s {
	case "OPERATIONAL":
		return "open"
	case "CLOSED_TEMPORARILY":
		return "temporarily_closed"
	case "CLOSED_PERMANENTLY":
		return "permanently_closed"
	}
	return strings.ToLower(s)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
