package processor

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/telemetry"
)

// newTelemetryCollector returns the collector for cfg and the gatherer that
// /metrics should expose. A disabled config yields a noop collector and no
// gatherer.
func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, prometheus.Gatherer, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil, nil
	}
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", "prometheus":
		collector, err := telemetry.NewPrometheusCollector(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, nil, err
		}
		return collector, prometheus.DefaultGatherer, nil
	case "none":
		return telemetry.Noop(), nil, nil
	default:
		return telemetry.Noop(), nil, fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}
