// Package elastic is a place provider backed by an Elasticsearch index with
// a geo_point "location" field. It can also mirror catalog places into the
// index so that free-text search runs against the search engine.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/rs/zerolog"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
	"github.com/agentstation/placemap/pkg/similarity"
)

// Name is the source name of the provider.
const Name = "elastic"

// DefaultIndex is used when Config.Index is empty.
const DefaultIndex = "places"

// Config configures the provider.
type Config struct {
	URL        string          `json:"url" yaml:"url" mapstructure:"url"` // Required
	Index      string          `json:"index" yaml:"index" mapstructure:"index"`
	Priority   int             `json:"priority" yaml:"priority" mapstructure:"priority"`
	Timeout    time.Duration   `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	HTTPClient *http.Client    `json:"-" yaml:"-" mapstructure:"-"`
	Logger     *zerolog.Logger `json:"-" yaml:"-" mapstructure:"-"`
}

// Provider implements providers.Provider.
type Provider struct {
	cfg    Config
	client *elastic.Client
	logger *zerolog.Logger
}

var _ providers.Provider = (*Provider)(nil)

// New creates the provider. Without a URL it returns
// errors.ErrProviderUnavailable. No request is made until the first call.
func New(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		return nil, errors.ErrProviderUnavailable
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultProviderTimeout
	}
	if cfg.Priority == 0 {
		cfg.Priority = 20
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, elastic.SetHttpClient(cfg.HTTPClient))
	}
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, errors.NewConfigError("elastic", "creating client", err)
	}

	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Provider{cfg: cfg, client: client, logger: logger}, nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

// Priority implements providers.Provider.
func (p *Provider) Priority() int { return p.cfg.Priority }

// Timeout implements providers.Provider.
func (p *Provider) Timeout() time.Duration { return p.cfg.Timeout }

// document is a place as stored in the index.
type document struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Location        elastic.GeoPoint   `json:"location"`
	Category        string             `json:"category,omitempty"`
	Categories      []string           `json:"categories,omitempty"`
	Brand           string             `json:"brand,omitempty"`
	OperatingStatus string             `json:"operating_status,omitempty"`
	Confidence      float64            `json:"confidence"`
	Address         places.Address     `json:"address"`
	Contacts        places.Contacts    `json:"contacts"`
	Attributes      *places.Attributes `json:"attributes,omitempty"`
}

// Search implements providers.Provider with a geo_distance filtered query
// sorted by distance.
func (p *Provider) Search(ctx context.Context, q places.SearchQuery) (*places.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	radius := q.Radius
	if radius <= 0 {
		radius = constants.DefaultSearchRadius
	}

	query := elastic.NewBoolQuery().Filter(
		elastic.NewGeoDistanceQuery("location").
			Lat(q.Lat).
			Lon(q.Lon).
			Distance(strconv.FormatFloat(radius, 'f', -1, 64) + "m"),
	)
	if q.Query != "" {
		query = query.Must(elastic.NewMultiMatchQuery(q.Query, "name", "brand").Fuzziness("AUTO"))
	}
	if q.Category != "" {
		query = query.Filter(elastic.NewBoolQuery().
			Should(
				elastic.NewTermQuery("category", q.Category),
				elastic.NewTermQuery("categories", q.Category),
			).
			MinimumNumberShouldMatch(1))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = constants.DefaultSearchLimit
	}

	start := time.Now()
	result, err := p.client.Search().
		Index(p.cfg.Index).
		Query(query).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(q.Lat, q.Lon).
			Asc().
			Unit("m").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		From(q.Offset).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", p.cfg.Index, err)
	}

	out := make([]places.Place, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var doc document
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			p.logger.Warn().Err(err).Str("id", hit.Id).Msg("Skipping unreadable document")
			continue
		}
		if doc.ID == "" {
			doc.ID = hit.Id
		}
		pl := doc.toPlace()
		if d, ok := sortDistance(hit.Sort); ok {
			pl.WithDistance(d)
		} else {
			pl.WithDistance(similarity.Distance(q.Lat, q.Lon, pl.Lat, pl.Lon))
		}
		out = append(out, *pl)
	}

	res := places.NewResult(out, constants.ProviderPlaceConfidence)
	res.Metadata.LatencyMS = time.Since(start).Milliseconds()
	p.logger.Debug().Str("provider", Name).Int("places", len(out)).Msg("Elasticsearch search")
	return res, nil
}

// GetPlace implements providers.Provider.
func (p *Provider) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	res, err := p.client.Get().Index(p.cfg.Index).Id(id).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if !res.Found || res.Source == nil {
		return nil, nil
	}

	var doc document
	if err := json.Unmarshal(res.Source, &doc); err != nil {
		return nil, errors.WrapParse("json", p.cfg.Index+"/"+id, err)
	}
	if doc.ID == "" {
		doc.ID = res.Id
	}
	return doc.toPlace(), nil
}

// HealthCheck implements providers.Provider. A red index is unhealthy.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	res, err := p.client.ClusterHealth().Index(p.cfg.Index).Do(ctx)
	if err != nil {
		return false
	}
	return res.Status != "red"
}

func (d document) toPlace() *places.Place {
	pl := &places.Place{
		ID:              d.ID,
		Name:            d.Name,
		Lat:             d.Location.Lat,
		Lon:             d.Location.Lon,
		Category:        places.Category{Primary: d.Category, Secondary: d.Categories},
		Confidence:      constants.ProviderPlaceConfidence,
		Address:         d.Address,
		Contacts:        d.Contacts,
		Brand:           d.Brand,
		OperatingStatus: d.OperatingStatus,
		Attributes:      d.Attributes,
	}
	pl.AddSource(Name, places.SourceRef{ExternalID: d.ID})
	return pl
}

func fromPlace(p *places.Place) document {
	return document{
		ID:              p.ID,
		Name:            p.Name,
		Location:        elastic.GeoPoint{Lat: p.Lat, Lon: p.Lon},
		Category:        p.Category.Primary,
		Categories:      p.Category.Secondary,
		Brand:           p.Brand,
		OperatingStatus: p.OperatingStatus,
		Confidence:      p.Confidence,
		Address:         p.Address,
		Contacts:        p.Contacts,
		Attributes:      p.Attributes,
	}
}

// sortDistance reads the geo distance sort value of a hit.
func sortDistance(sort []any) (float64, bool) {
	if len(sort) == 0 {
		return 0, false
	}
	switch v := sort[0].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
