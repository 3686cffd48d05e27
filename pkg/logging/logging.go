// Package logging configures the process-wide log/slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logging configuration options.
type Config struct {
	Level slog.Level
	// JSON selects the JSON handler instead of text.
	JSON bool
	// AddSource includes the caller's file and line.
	AddSource bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig reads the environment:
//
//	LOG_LEVEL   DEBUG, INFO, WARN or ERROR (default INFO)
//	LOG_FORMAT  text or json (default text)
//	LOG_SOURCE  any non-empty value adds source locations
func DefaultConfig() Config {
	return Config{
		Level:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		JSON:      strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), FormatJSON),
		AddSource: os.Getenv("LOG_SOURCE") != "",
		Output:    os.Stderr,
	}
}

// parseLogLevel accepts the slog level names and WARNING. Anything else,
// including the empty string, is INFO.
func parseLogLevel(s string) slog.Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewHandler returns the handler described by cfg.
func NewHandler(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	if cfg.JSON {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// Setup installs a logger built from cfg as the slog default and returns it.
func Setup(cfg Config) *slog.Logger {
	logger := slog.New(NewHandler(cfg))
	slog.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
