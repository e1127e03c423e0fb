// Package logging configures the zerolog logger shared by the ingest commands.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty switches to the human-readable console writer. Long runs on a
	// terminal usually want this; cron jobs want JSON.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for run summaries.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level, defaulting to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a child of the global logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Nop returns a disabled logger, handy for tests and library callers that do
// not want output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Log Level Guidelines:
//
// Debug: per-request flow
//   - rate window grants and waits
//   - cache hit/miss
//   - request attempts
//
// Info: run milestones
//   - batch start / finish
//   - run summary
//   - catalog sync counts
//
// Warn: recoverable trouble
//   - 429 responses and Retry-After sleeps
//   - 5xx/network retries
//   - failed items
//
// Error: needs attention
//   - retries exhausted
//   - sink/store failures
//   - configuration errors
//
// Context Fields:
//   - player_id: work item id
//   - endpoint: provider path
//   - status: HTTP status code
//   - attempt: 1-based attempt number
//   - wait: sleep duration
//   - batch: 1-based batch index
