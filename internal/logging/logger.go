package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type config struct {
	out  io.Writer
	json bool
}

// Option tweaks the logger built by New.
type Option func(*config)

// WithWriter redirects output (Stderr by default).
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithJSON switches to the JSON handler, for log shippers.
func WithJSON() Option {
	return func(c *config) { c.json = true }
}

// New creates a configured application logger.
// It writes to Stderr so that Stdout stays free for dialogue output and NDJSON.
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level, opts ...Option) *slog.Logger {
	cfg := config{out: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if cfg.json {
		return slog.New(slog.NewJSONHandler(cfg.out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(cfg.out, handlerOpts))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a flag or env value (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
