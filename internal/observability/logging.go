// Package observability wires structured logging and Prometheus metrics
// for the render service.
package observability

import (
	"log/slog"
	"os"

	"github.com/ishaanrender/scrapegoat-render/internal/config"
)

// NewLogger builds a slog.Logger from logging configuration, writing
// text or JSON to stderr or stdout.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
