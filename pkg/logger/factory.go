package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Deployment environments recognised by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// profile holds the per-environment defaults. Development logs text at debug
// level; staging and production log JSON at info level for the aggregator.
type profile struct {
	env   string
	level slog.Level
	json  bool
}

var profiles = map[string]profile{
	EnvDevelopment: {env: EnvDevelopment, level: slog.LevelDebug},
	"dev":          {env: EnvDevelopment, level: slog.LevelDebug},
	EnvStaging:     {env: EnvStaging, level: slog.LevelInfo, json: true},
	"stage":        {env: EnvStaging, level: slog.LevelInfo, json: true},
	EnvProduction:  {env: EnvProduction, level: slog.LevelInfo, json: true},
	"prod":         {env: EnvProduction, level: slog.LevelInfo, json: true},
}

// Option configures logger creation.
type Option func(*config)

// WithEnvironment applies the defaults for env and tags every record with the
// service name and the canonical environment. Unknown environments fall back to
// development.
func WithEnvironment(env, service string) Option {
	return func(c *config) {
		p, ok := profiles[strings.ToLower(env)]
		if !ok {
			p = profiles[EnvDevelopment]
		}
		c.level = p.level
		c.json = p.json
		c.attrs = append(c.attrs, slog.String("env", p.env))
		if service != "" {
			c.attrs = append(c.attrs, slog.String("service", service))
		}
	}
}

// WithLevel overrides the environment level. Apply it after WithEnvironment.
func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithOutput sets the destination; nil keeps stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithContextExtractors registers functions that add attributes from the
// logging context, such as the lifecycle run ID.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		for _, ex := range extractors {
			if ex != nil {
				c.extractors = append(c.extractors, ex)
			}
		}
	}
}

// ParseLevel reads a LOG_LEVEL style value ("debug", "INFO", "warn+2").
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

type config struct {
	level      slog.Level
	json       bool
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// New creates a logger. Without options it logs JSON at info level to stdout.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		json:   true,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level}
	var handler slog.Handler
	if cfg.json {
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	}
	if len(cfg.attrs) > 0 {
		handler = handler.WithAttrs(cfg.attrs)
	}
	return slog.New(newContextHandler(handler, cfg.extractors))
}
