// Package serve provides the serve command, which runs the HTTP API.
package serve

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/server"
	"github.com/agentstation/placemap/internal/server/events"
)

// Application is what the serve command needs beyond the shared
// application: an optional extra sink for link events.
type Application interface {
	application.Application
	EventSink() (events.Subscriber, error)
}

// NewCommand creates the serve command.
func NewCommand(app Application) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "core",
		Short:   "Serve the REST API with WebSocket and SSE link streams",
		Long: `Start the placemap HTTP API.

Features:
  - Place search around a point or inside a box (/api/v1/places/search, /api/v1/places/bounds)
  - Place lookup by id (/api/v1/places/{id})
  - Provider and layer listings (/api/v1/providers, /api/v1/layers)
  - Live link events over WebSocket (/api/v1/links/ws) and SSE (/api/v1/links/stream)
  - Link events published to Kafka when KAFKA_BROKERS is set
  - Request IDs, logging, panic recovery, CORS, rate limiting, API keys
  - Graceful shutdown with connection draining

HTTP_HOST and HTTP_PORT override --host and --port.`,
		Example: `  # Start on default port 8080
  placemap serve

  # Require an API key and allow one origin
  API_KEY=secret placemap serve --auth --cors-origins https://app.example.com

  # Disable rate limiting
  placemap serve --rate-limit 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, app)
		},
	}

	cmd.Flags().IntP("port", "p", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	cmd.Flags().Bool("cors", false, "Enable CORS")
	cmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins (comma-separated, implies --cors)")

	cmd.Flags().Bool("auth", false, "Require an API key (read from API_KEY)")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")

	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")

	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")
	cmd.Flags().Duration("shutdown-timeout", defaults.ShutdownTimeout, "Graceful shutdown timeout")

	return cmd
}

// ConfigFromFlags builds the server configuration from flags and the
// HTTP_HOST, HTTP_PORT and API_KEY environment variables.
func ConfigFromFlags(cmd *cobra.Command) (server.Config, error) {
	cfg := server.DefaultConfig()
	cfg.Port, _ = cmd.Flags().GetInt("port")
	cfg.Host, _ = cmd.Flags().GetString("host")
	cfg.PathPrefix, _ = cmd.Flags().GetString("prefix")
	cfg.CORSEnabled, _ = cmd.Flags().GetBool("cors")
	cfg.CORSOrigins, _ = cmd.Flags().GetStringSlice("cors-origins")
	cfg.AuthEnabled, _ = cmd.Flags().GetBool("auth")
	cfg.AuthHeader, _ = cmd.Flags().GetString("auth-header")
	cfg.RateLimit, _ = cmd.Flags().GetInt("rate-limit")
	cfg.ReadTimeout, _ = cmd.Flags().GetDuration("read-timeout")
	cfg.WriteTimeout, _ = cmd.Flags().GetDuration("write-timeout")
	cfg.IdleTimeout, _ = cmd.Flags().GetDuration("idle-timeout")
	cfg.ShutdownTimeout, _ = cmd.Flags().GetDuration("shutdown-timeout")

	if len(cfg.CORSOrigins) > 0 {
		cfg.CORSEnabled = true
	}

	if envPort := os.Getenv("HTTP_PORT"); envPort != "" {
		p, err := parsePort(envPort)
		if err != nil {
			return cfg, err
		}
		cfg.Port = p
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" {
		cfg.Host = envHost
	}

	cfg.APIKey = os.Getenv("API_KEY")
	if cfg.AuthEnabled && cfg.APIKey == "" {
		return cfg, fmt.Errorf("--auth requires the API_KEY environment variable")
	}
	if cfg.RateLimit < 0 {
		return cfg, fmt.Errorf("invalid rate limit %d", cfg.RateLimit)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, app Application) error {
	cfg, err := ConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	logger := app.Logger()
	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Msg("Starting API server")

	srv, err := server.New(cmd.Context(), app, cfg)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	sink, err := app.EventSink()
	if err != nil {
		return fmt.Errorf("creating event sink: %w", err)
	}
	if sink != nil {
		srv.Subscribe(sink)
		logger.Info().Msg("Publishing link events to Kafka")
	}

	start := time.Now()
	err = srv.ListenAndServe(cmd.Context())
	logger.Info().Dur("uptime", time.Since(start)).Msg("API server stopped")
	return err
}

// parsePort parses and validates a port number.
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
