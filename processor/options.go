package processor

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/engine"
	"github.com/timzifer/evcert/telemetry"
)

// WithLogger provides a custom logger instance for the processor.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger
		cfg.customLogger = true
		return nil
	}
}

// WithConfigPath configures the processor to load configuration data from the provided path.
// register receives the reload function so a signal handler can trigger it.
func WithConfigPath(path string, register func(ReloadFunc)) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.configPath = strings.TrimSpace(path)
		cfg.registerReload = register
		return nil
	}
}

// WithConfig supplies an already loaded configuration instance.
func WithConfig(cfgData *config.Config) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.config = cfgData
		return nil
	}
}

// WithTelemetry injects a collector instance overriding the default configuration-based behaviour.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.telemetry = collector
		cfg.telemetryProvided = true
		return nil
	}
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.gatherer = gatherer
		return nil
	}
}

// WithEngineOptions forwards options to every engine the processor builds.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.engineOptions = append(cfg.engineOptions, opts...)
		return nil
	}
}
