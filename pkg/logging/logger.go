// Package logging holds the zerolog setup shared by placemap components:
// a process-wide default logger, loggers carried in a context with place,
// provider and source fields, and capture helpers for tests.
//
//	ctx = logging.WithProvider(ctx, "elastic")
//	logging.FromContext(ctx).Warn().Err(err).Msg("Provider search failed")
package logging

import (
	"os"
	"time"

	goisatty "github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger = newDefaultLogger()

// newDefaultLogger writes to stderr at LOG_LEVEL (debug when DEBUG is set),
// in console form on a terminal unless LOG_FORMAT=json.
func newDefaultLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = l
	}

	logger := zerolog.New(os.Stderr)
	if isatty() && os.Getenv("LOG_FORMAT") != "json" {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// Default returns the process-wide logger. Components without an injected
// logger fall back to it.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, including zerolog's global
// log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Warn starts a warning on the default logger.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

func isatty() bool {
	fd := os.Stderr.Fd()
	return goisatty.IsTerminal(fd) || goisatty.IsCygwinTerminal(fd)
}
