package placemap

import (
	"context"
	"sync"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/providers"
)

// HealthCheck implements Client. Every provider is probed concurrently under
// a short timeout; a panicking probe counts as unhealthy.
func (c *client) HealthCheck(ctx context.Context) map[string]bool {
	list := c.registry.List()
	status := make(map[string]bool, len(list))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range list {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			ok := c.probe(ctx, p)

			mu.Lock()
			status[p.Name()] = ok
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return status
}

func (c *client) probe(ctx context.Context, p providers.Provider) (ok bool) {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("provider", p.Name()).Msg("Health check panicked")
			ok = false
		}
	}()

	ok = p.HealthCheck(ctx)
	if !ok {
		c.logger.Debug().Str("provider", p.Name()).Msg("Provider unhealthy")
	}
	return ok
}

// Overall health states derived from a HealthCheck result.
const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// HealthStatus summarizes per-provider health: healthy when every provider
// is up, unavailable when none is, degraded otherwise.
func HealthStatus(status map[string]bool) string {
	up := 0
	for _, ok := range status {
		if ok {
			up++
		}
	}
	switch {
	case up == 0:
		return StatusUnavailable
	case up == len(status):
		return StatusHealthy
	default:
		return StatusDegraded
	}
}
