// Package logging builds the zerolog loggers used across evcert. Every
// subsystem logs through a component logger so levels can be tuned per
// component and Loki streams can be split by component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/config"
)

// Component names used by the runtime.
const (
	ComponentEngine = "engine"
	ComponentHTTP   = "http"
	ComponentMQTT   = "mqtt"
	ComponentReload = "reload"
)

// Set is a root logger plus the per-component level overrides.
type Set struct {
	root   zerolog.Logger
	levels map[string]zerolog.Level
}

// FromLogger wraps an existing logger without overrides.
func FromLogger(logger zerolog.Logger) Set {
	return Set{root: logger}
}

// Root returns the logger without a component field.
func (s Set) Root() zerolog.Logger {
	return s.root
}

// Component returns a child logger tagged with name, at its configured level
// when one is set.
func (s Set) Component(name string) zerolog.Logger {
	logger := s.root.With().Str("component", name).Logger()
	if level, ok := s.levels[name]; ok {
		logger = logger.Level(level)
	}
	return logger
}

// Setup builds the logger set described by cfg. The returned cleanup stops
// the Loki client when one is used.
func Setup(cfg config.LoggingConfig) (Set, func(), error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.LoggingConfig, out io.Writer) (Set, func(), error) {
	level, err := parseLevel(cfg.Level, zerolog.InfoLevel)
	if err != nil {
		return Set{}, nil, err
	}
	levels := make(map[string]zerolog.Level, len(cfg.Components))
	for name, raw := range cfg.Components {
		l, err := parseLevel(raw, level)
		if err != nil {
			return Set{}, nil, fmt.Errorf("component %s: %w", name, err)
		}
		levels[name] = l
	}

	var console io.Writer = out
	if strings.EqualFold(cfg.Format, "text") {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	writers := []io.Writer{console}
	cleanup := func() {}
	if cfg.Loki.Enabled {
		sink, stop, err := newLokiSink(cfg.Loki)
		if err != nil {
			return Set{}, nil, err
		}
		writers = append(writers, sink)
		cleanup = stop
	}

	root := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Str("service", "evcert").Logger().
		Level(level)
	return Set{root: root, levels: levels}, cleanup, nil
}

func parseLevel(raw string, fallback zerolog.Level) (zerolog.Level, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}
