// Package handlers implements the placemap HTTP API.
package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/server/response"
	"github.com/agentstation/placemap/internal/server/sse"
	ws "github.com/agentstation/placemap/internal/server/websocket"
	"github.com/agentstation/placemap/pkg/logging"
)

// Handlers holds the dependencies shared by every endpoint.
type Handlers struct {
	app            application.Application
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
}

// New creates the handler set.
func New(
	app application.Application,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		app:            app,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		logger:         logger,
	}
}

// placemap resolves the orchestrator or answers 503.
func (h *Handlers) placemap(w http.ResponseWriter, r *http.Request) (placemap.Client, bool) {
	pm, err := h.app.Placemap(r.Context())
	if err != nil || pm == nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("Placemap client unavailable")
		response.ServiceUnavailable(w, "search engine is not available")
		return nil, false
	}
	return pm, true
}

// fail logs err with the request logger and writes the mapped response.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context()).Warn().Err(err).Str("operation", op).Msg("Request failed")
	response.ErrorFromType(w, err)
}
