// Package logging configures zerolog for the records packages and derives
// the component and page scoped loggers they log through.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as accepted from flags and RECORDS_LOG_LEVEL.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs a timestamped logger as the zerolog global and returns it.
// The global level is set too, so loggers derived earlier are filtered as well.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel converts a level name to zerolog.Level, ignoring case.
// "warning" is accepted for warn. Unknown names fall back to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return Component(log.Logger, component)
}

// Component tags logger with a component name.
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str(FieldComponent, component).Logger()
}

// ForRequest tags logger with the page and color filter of req. An
// unfiltered request logs an empty colors list so every page line carries
// the same fields.
func ForRequest(logger zerolog.Logger, req records.PageRequest) zerolog.Logger {
	colors := req.Colors
	if colors == nil {
		colors = []string{}
	}
	return logger.With().
		Int(FieldPage, req.Page).
		Strs(FieldColors, colors).
		Logger()
}

// Field names shared across the records packages.
const (
	FieldComponent = "component"
	FieldPage      = "page"
	FieldColors    = "colors"
	FieldOffset    = "offset"
	FieldOp        = "op"
)

// Levels in use:
//
// Debug: cache hits and misses, upstream requests, probe outcomes, retrieved pages.
// Info: runtime wiring, breaker state changes, server start and stop.
// Warn: page fetches absorbed as empty pages, retries, cache errors bypassed.
// Error: failed retrievals (op = validate, fetch, probe, join, aggregate).
