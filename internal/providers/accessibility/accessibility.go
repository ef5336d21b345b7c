// Package accessibility is a place provider backed by a wheelchair
// accessibility HTTP API. Every node it returns carries its accessibility
// data as attributes, which the linker stores as layer data.
//
// The API is expected to answer:
//
//	GET {base}/nodes?lat=..&lon=..&radius=..&q=..&limit=..  -> {"nodes": [...]}
//	GET {base}/nodes/{id}                                 -> {"node": {...}}
//	GET {base}/status                                     -> 2xx when healthy
package accessibility

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/placemap/internal/transport"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
	"github.com/agentstation/placemap/pkg/similarity"
)

// DefaultName is the source name used when Config.Name is empty.
const DefaultName = "accessibility"

// Config configures the provider.
type Config struct {
	Name     string              `json:"name" yaml:"name" mapstructure:"name"`
	BaseURL  string              `json:"base_url" yaml:"base_url" mapstructure:"base_url"`                     // Required
	APIKey   string              `json:"-" yaml:"-" mapstructure:"api_key"`
	Key      transport.KeyConfig `json:"key" yaml:"key" mapstructure:"key"`
	Priority int                 `json:"priority" yaml:"priority" mapstructure:"priority"`
	Timeout  time.Duration       `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Coverage *places.Bounds      `json:"coverage,omitempty" yaml:"coverage,omitempty" mapstructure:"coverage"` // Queries centred outside are skipped
	Logger   *zerolog.Logger     `json:"-" yaml:"-" mapstructure:"-"`
	Options  []transport.Option  `json:"-" yaml:"-" mapstructure:"-"`
}

// Provider implements providers.Provider.
type Provider struct {
	cfg    Config
	client *transport.Client
	logger *zerolog.Logger
}

var _ providers.Provider = (*Provider)(nil)

// New creates the provider. Without a base URL it returns
// errors.ErrProviderUnavailable.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.ErrProviderUnavailable
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.NewConfigError("accessibility", "invalid base url", err)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultProviderTimeout
	}
	if cfg.Priority == 0 {
		cfg.Priority = 30
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	opts := append([]transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithAPIKey(cfg.APIKey),
	}, cfg.Options...)

	return &Provider{
		cfg:    cfg,
		client: transport.New(cfg.Name, cfg.BaseURL, &transport.KeyAuth{Config: cfg.Key}, opts...),
		logger: logger,
	}, nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return p.cfg.Name }

// Priority implements providers.Provider.
func (p *Provider) Priority() int { return p.cfg.Priority }

// Timeout implements providers.Provider.
func (p *Provider) Timeout() time.Duration { return p.cfg.Timeout }

// node is one place as the API returns it.
type node struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Lat                   float64 `json:"lat"`
	Lon                   float64 `json:"lon"`
	Category              string  `json:"category"`
	Wheelchair            string  `json:"wheelchair"`
	WheelchairToilet      string  `json:"wheelchair_toilet"`
	WheelchairDescription string  `json:"wheelchair_description"`
	Street                string  `json:"street"`
	City                  string  `json:"city"`
	Postcode              string  `json:"postcode"`
	Website               string  `json:"website"`
	Phone                 string  `json:"phone"`
}

// Search implements providers.Provider.
func (p *Provider) Search(ctx context.Context, q places.SearchQuery) (*places.Result, error) {
	if p.cfg.Coverage != nil && !p.cfg.Coverage.Contains(q.Lat, q.Lon) {
		return places.NewResult(nil, constants.ProviderPlaceConfidence), nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(q.Lon, 'f', 6, 64))
	params.Set("radius", strconv.FormatFloat(q.Radius, 'f', -1, 64))
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	start := time.Now()
	var body struct {
		Nodes []node `json:"nodes"`
	}
	if err := p.client.GetJSON(ctx, "nodes", params, &body); err != nil {
		return nil, err
	}

	out := make([]places.Place, 0, len(body.Nodes))
	for _, n := range body.Nodes {
		if n.ID == "" {
			continue
		}
		pl := p.toPlace(n)
		pl.WithDistance(similarity.Distance(q.Lat, q.Lon, pl.Lat, pl.Lon))
		out = append(out, *pl)
	}

	res := places.NewResult(out, constants.ProviderPlaceConfidence)
	res.Metadata.LatencyMS = time.Since(start).Milliseconds()
	p.logger.Debug().Str("provider", p.cfg.Name).Int("places", len(out)).Msg("Accessibility search")
	return res, nil
}

// GetPlace implements providers.Provider.
func (p *Provider) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var body struct {
		Node *node `json:"node"`
	}
	err := p.client.GetJSON(ctx, "nodes/"+url.PathEscape(id), nil, &body)
	if err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if body.Node == nil || body.Node.ID == "" {
		return nil, nil
	}
	return p.toPlace(*body.Node), nil
}

// HealthCheck implements providers.Provider.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	resp, err := p.client.Get(ctx, "status", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *Provider) toPlace(n node) *places.Place {
	attrs := places.NewAttributes()
	attrs.Set("wheelchair", n.Wheelchair)
	if n.WheelchairToilet != "" {
		attrs.Set("wheelchair_toilet", n.WheelchairToilet)
	}
	if n.WheelchairDescription != "" {
		attrs.Set("wheelchair_description", n.WheelchairDescription)
	}

	pl := &places.Place{
		ID:         n.ID,
		Name:       n.Name,
		Lat:        n.Lat,
		Lon:        n.Lon,
		Category:   places.Category{Primary: n.Category},
		Confidence: constants.ProviderPlaceConfidence,
		Address:    places.Address{Street: n.Street, City: n.City, Postcode: n.Postcode},
		Attributes: attrs,
	}
	if n.Website != "" {
		pl.Contacts.Websites = []string{n.Website}
	}
	if n.Phone != "" {
		pl.Contacts.Phones = []string{n.Phone}
	}
	pl.AddSource(p.cfg.Name, places.SourceRef{ExternalID: n.ID, Raw: n})
	return pl
}
