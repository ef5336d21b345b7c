// Package catalog exposes the authoritative catalog store as a provider so
// it can take part in single-place lookups and health checks.
package catalog

import (
	"context"
	"time"

	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

// Name is the source name of the authoritative provider.
const Name = "catalog"

// Provider serves places straight from the catalog store.
type Provider struct {
	store   catalog.Store
	timeout time.Duration
}

var _ providers.Provider = (*Provider)(nil)

// New wraps store. A zero timeout uses the catalog default.
func New(store catalog.Store, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = constants.DefaultCatalogTimeout
	}
	return &Provider{store: store, timeout: timeout}
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

// Priority implements providers.Provider. The catalog is always asked first.
func (p *Provider) Priority() int { return 0 }

// Timeout implements providers.Provider.
func (p *Provider) Timeout() time.Duration { return p.timeout }

// Search implements providers.Provider.
func (p *Provider) Search(ctx context.Context, q places.SearchQuery) (*places.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	found, err := p.store.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	res := places.NewResult(found, constants.AuthoritativeConfidence)
	res.Metadata.LatencyMS = time.Since(start).Milliseconds()
	return res, nil
}

// GetPlace implements providers.Provider.
func (p *Provider) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.store.GetPlace(ctx, id)
}

// HealthCheck implements providers.Provider.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	return p.store.Ping(ctx) == nil
}
