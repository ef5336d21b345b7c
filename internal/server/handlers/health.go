package handlers

import (
	"net/http"
	"sort"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/internal/server/response"
)

// HandleHealth handles GET /health, the liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  placemap.StatusHealthy,
		"service": "placemap",
		"version": h.app.Version(),
	}, nil)
}

// HandleProviderHealth handles GET /api/v1/health. Unhealthy providers
// degrade the status but never fail the endpoint.
func (h *Handlers) HandleProviderHealth(w http.ResponseWriter, r *http.Request) {
	pm, ok := h.placemap(w, r)
	if !ok {
		return
	}

	checks := pm.HealthCheck(r.Context())
	var up, down []string
	for name, healthy := range checks {
		if healthy {
			up = append(up, name)
		} else {
			down = append(down, name)
		}
	}
	sort.Strings(up)
	sort.Strings(down)

	response.OK(w, map[string]any{
		"status":    placemap.HealthStatus(checks),
		"providers": checks,
	}, map[string]any{
		"healthy":           up,
		"unhealthy":         down,
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}
