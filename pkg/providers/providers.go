// Package providers defines the contract every place data source implements
// and a registry that holds the configured sources.
//
// A provider self-filters: when a query is outside its domain it returns an
// empty result quickly. It also enforces its own Timeout; the orchestrator
// only uses that value to bound the call from the outside.
package providers

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/agentstation/placemap/pkg/places"
)

// Provider is a source of places.
type Provider interface {
	// Name is the stable source name, also used as the cross-reference key.
	Name() string
	// Priority orders single-place lookups; lower is asked first.
	Priority() int
	// Timeout is the longest a call may take.
	Timeout() time.Duration
	// Search returns places matching the query.
	Search(ctx context.Context, q places.SearchQuery) (*places.Result, error)
	// GetPlace returns the place with the given id, or nil when unknown.
	GetPlace(ctx context.Context, id string) (*places.Place, error)
	// HealthCheck reports whether the provider is reachable.
	HealthCheck(ctx context.Context) bool
}

// Info describes a registered provider.
type Info struct {
	Name          string        `json:"name" yaml:"name"`
	Priority      int           `json:"priority" yaml:"priority"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	Authoritative bool          `json:"authoritative" yaml:"authoritative"`
}

// Registry is a thread-safe set of providers keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps. Later entries replace earlier
// ones with the same name.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider. Nil providers are ignored.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Remove deletes a provider by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// List returns the providers by ascending priority, then name.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	list := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		list = append(list, p)
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b Provider) int {
		return cmp.Or(cmp.Compare(a.Priority(), b.Priority()), cmp.Compare(a.Name(), b.Name()))
	})
	return list
}

// Names returns the provider names in List order.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name()
	}
	return names
}

// InfoOf describes p.
func InfoOf(p Provider, authoritative bool) Info {
	return Info{
		Name:          p.Name(),
		Priority:      p.Priority(),
		Timeout:       p.Timeout(),
		Authoritative: authoritative,
	}
}
