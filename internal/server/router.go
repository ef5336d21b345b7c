package server

import (
	"net/http"
	"strings"

	"github.com/agentstation/placemap/internal/server/handlers"
	"github.com/agentstation/placemap/internal/server/middleware"
	"github.com/agentstation/placemap/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()
	h := handlers.New(s.app, s.wsHub, s.sseBroadcaster, s.upgrader, s.logger)
	s.registerRoutes(mux, h)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/health", h.HandleProviderHealth)

	mux.HandleFunc(prefix+"/places/search", h.HandleSearch)
	mux.HandleFunc(prefix+"/places/bounds", h.HandleBounds)
	mux.HandleFunc(prefix+"/places/", func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(strings.TrimPrefix(r.URL.Path, prefix+"/places/"))
		if len(parts) != 1 {
			response.NotFound(w, "unknown path "+r.URL.Path)
			return
		}
		h.HandlePlace(w, r, parts[0])
	})

	mux.HandleFunc(prefix+"/providers", h.HandleProviders)
	mux.HandleFunc(prefix+"/layers", h.HandleLayers)

	mux.HandleFunc(prefix+"/links/ws", h.HandleWebSocket)
	mux.HandleFunc(prefix+"/links/stream", h.HandleSSE)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "unknown path "+r.URL.Path)
	})
}

// applyMiddleware wraps handler so that requests pass, outermost first,
// through request ID, recovery, logging, CORS, auth and rate limiting.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config
	chain := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
		}
		chain = append(chain, middleware.CORS(corsConfig))
	}

	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		if cfg.AuthHeader != "" {
			authConfig.HeaderName = cfg.AuthHeader
		}
		chain = append(chain, middleware.Auth(authConfig, s.logger))
	}

	if s.rateLimiter != nil {
		chain = append(chain, middleware.RateLimit(s.rateLimiter))
	}

	return middleware.Chain(chain...)(handler)
}

// splitPath splits a URL path into its non-empty parts.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
