package engine

import (
	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/chargers"
	"github.com/timzifer/evcert/telemetry"
)

// Option configures the engine during construction.
type Option func(*settings) error

type settings struct {
	logger    zerolog.Logger
	telemetry telemetry.Collector
	registry  *chargers.Registry
}

// WithLogger provides a logger for evaluation diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger
		return nil
	}
}

// WithTelemetry injects a collector. A nil collector discards metrics.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.telemetry = collector
		return nil
	}
}

// WithRegistry replaces the built-in charger catalogue as the base registry.
// Catalogue files named in the configuration are still merged on top.
func WithRegistry(reg *chargers.Registry) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.registry = reg
		return nil
	}
}
