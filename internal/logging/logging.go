// Package logging configures the process-wide zerolog logger.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceHook stamps every event with the service name and version.
type ServiceHook struct {
	name    string
	version string
}

func NewServiceHook(name, version string) ServiceHook {
	return ServiceHook{name: name, version: version}
}

func (h ServiceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str("service", h.name).Str("version", h.version)
}

// Options select the logger output.
type Options struct {
	Level   string
	Format  string // "console" or "json"
	Writer  io.Writer
	Service string
	Version string
}

// ParseLevel is zerolog.ParseLevel with info as the fallback.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New builds a logger from opts.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	if opts.Service != "" {
		logger = logger.Hook(NewServiceHook(opts.Service, opts.Version))
	}
	return logger
}

// Setup installs the logger globally and attaches it to ctx so callers can
// use log.Ctx(ctx).
func Setup(ctx context.Context, opts Options) context.Context {
	log.Logger = New(opts)
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger.WithContext(ctx)
}

// Component returns the context logger tagged with component and stage.
func Component(ctx context.Context, component, stage string) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", component).Str("stage", stage).Logger()
}
