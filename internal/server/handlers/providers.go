package handlers

import (
	"net/http"

	"github.com/agentstation/placemap/internal/server/response"
)

// HandleProviders handles GET /api/v1/providers.
func (h *Handlers) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}
	pm, ok := h.placemap(w, r)
	if !ok {
		return
	}

	infos := pm.Providers()
	response.OK(w, infos, map[string]any{"count": len(infos)})
}

// HandleLayers handles GET /api/v1/layers.
func (h *Handlers) HandleLayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}
	pm, ok := h.placemap(w, r)
	if !ok {
		return
	}

	layers, err := pm.Layers(r.Context())
	if err != nil {
		fail(w, r, "layers", err)
		return
	}
	response.OK(w, layers, map[string]any{"count": len(layers)})
}
