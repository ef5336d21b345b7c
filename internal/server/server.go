// Package server provides the placemap HTTP API: search endpoints plus
// WebSocket and SSE streams of place and link events.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/server/events"
	"github.com/agentstation/placemap/internal/server/events/adapters"
	"github.com/agentstation/placemap/internal/server/middleware"
	"github.com/agentstation/placemap/internal/server/sse"
	ws "github.com/agentstation/placemap/internal/server/websocket"
	"github.com/agentstation/placemap/pkg/places"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app            application.Application
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	rateLimiter    *middleware.RateLimiter
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startOnce      sync.Once
}

// New creates a server and connects the placemap hooks to its event broker.
func New(ctx context.Context, app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()

	broker := events.NewBroker(logger)
	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))

	runCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		app:            app,
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		config: cfg,
		ctx:    runCtx,
		cancel: cancel,
	}
	if cfg.RateLimit > 0 {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
	}

	pm, err := app.Placemap(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating placemap client: %w", err)
	}
	s.connectHooks(pm)

	return s, nil
}

// connectHooks publishes placemap link activity to the broker.
func (s *Server) connectHooks(pm placemap.Client) {
	pm.OnPlaceCreated(func(p places.Place, source string) {
		s.broker.Publish(events.PlaceCreated, map[string]any{
			"source": source,
			"place":  p,
		})
	})
	pm.OnLinkCreated(func(e placemap.LinkEvent) {
		s.broker.Publish(events.LinkCreated, e)
	})
	pm.OnLinkUpdated(func(e placemap.LinkEvent) {
		s.broker.Publish(events.LinkUpdated, e)
	})
	pm.OnLinkTouched(func(e placemap.LinkEvent) {
		s.broker.Publish(events.LinkTouched, e)
	})
	s.logger.Debug().Msg("Placemap hooks connected to event broker")
}

// Subscribe adds an extra event subscriber, such as a Kafka publisher.
func (s *Server) Subscribe(sub events.Subscriber) {
	s.broker.Subscribe(sub)
}

// Start starts the background services. It is safe to call more than once.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		run := func(f func(context.Context)) {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				f(s.ctx)
			}()
		}
		run(s.broker.Run)
		run(s.wsHub.Run)
		run(s.sseBroadcaster.Run)
		if s.rateLimiter != nil {
			run(func(ctx context.Context) { s.rateLimiter.Run(ctx, 5*time.Minute) })
		}
		s.logger.Debug().Msg("Background services started")
	})
}

// Handler returns the router with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// ListenAndServe starts the background services and serves HTTP until ctx
// is cancelled, then drains connections and stops the services.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.Start()

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = s.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down HTTP server")
	err := httpServer.Shutdown(shutdownCtx)
	if serr := s.Shutdown(shutdownCtx); err == nil {
		err = serr
	}
	return err
}

// Shutdown stops the background services and waits for them up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Background services shut down")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// Broker returns the event broker.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}
