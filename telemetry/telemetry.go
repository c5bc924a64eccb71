package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the engine.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with every form evaluation.
type Collector interface {
	IncEvaluation(operation string)
	IncVerdict(field, status string)
	IncLookupMiss(deviceType string)
	IncDNOCategory(category string)
	IncHotReload(file string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncEvaluation(string)      {}
func (noopCollector) IncVerdict(string, string) {}
func (noopCollector) IncLookupMiss(string)      {}
func (noopCollector) IncDNOCategory(string)     {}
func (noopCollector) IncHotReload(string)       {}

// PrometheusCollector exposes telemetry counters via Prometheus.
type PrometheusCollector struct {
	evaluations *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	lookupMiss  *prometheus.CounterVec
	dno         *prometheus.CounterVec
	hotReloads  *prometheus.CounterVec
}

// counters caches vectors per registerer and metric name.
var (
	countersMu sync.Mutex
	counters   = make(map[prometheus.Registerer]map[string]*prometheus.CounterVec)
)

// NewPrometheusCollector registers the required metrics with the provided registerer.
// Metrics already registered by an earlier collector are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	countersMu.Lock()
	defer countersMu.Unlock()

	evaluations, err := counterVec(reg, "evcert_evaluations_total",
		"Number of engine operations evaluated.", "operation")
	if err != nil {
		return nil, err
	}
	verdicts, err := counterVec(reg, "evcert_validation_verdicts_total",
		"Number of test result verdicts per field and status.", "field", "status")
	if err != nil {
		return nil, err
	}
	lookupMiss, err := counterVec(reg, "evcert_max_zs_lookup_misses_total",
		"Number of maximum Zs lookups with no tabulated entry.", "device_type")
	if err != nil {
		return nil, err
	}
	dnoCategories, err := counterVec(reg, "evcert_dno_classifications_total",
		"Number of DNO classifications per category.", "category")
	if err != nil {
		return nil, err
	}
	hotReloads, err := counterVec(reg, "evcert_config_hot_reload_total",
		"Number of hot reload operations triggered per configuration source file.", "file")
	if err != nil {
		return nil, err
	}
	return &PrometheusCollector{
		evaluations: evaluations,
		verdicts:    verdicts,
		lookupMiss:  lookupMiss,
		dno:         dnoCategories,
		hotReloads:  hotReloads,
	}, nil
}

func counterVec(reg prometheus.Registerer, name, help string, labels ...string) (*prometheus.CounterVec, error) {
	byName, ok := counters[reg]
	if !ok {
		byName = make(map[string]*prometheus.CounterVec)
		counters[reg] = byName
	}
	if existing, ok := byName[name]; ok {
		return existing, nil
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}
	byName[name] = counter
	return counter, nil
}

// IncEvaluation counts one engine operation.
func (p *PrometheusCollector) IncEvaluation(operation string) {
	if p == nil || p.evaluations == nil {
		return
	}
	p.evaluations.WithLabelValues(operation).Inc()
}

// IncVerdict counts one validation verdict.
func (p *PrometheusCollector) IncVerdict(field, status string) {
	if p == nil || p.verdicts == nil {
		return
	}
	p.verdicts.WithLabelValues(field, status).Inc()
}

// IncLookupMiss counts a maximum Zs lookup without a table entry.
func (p *PrometheusCollector) IncLookupMiss(deviceType string) {
	if p == nil || p.lookupMiss == nil {
		return
	}
	p.lookupMiss.WithLabelValues(deviceType).Inc()
}

// IncDNOCategory counts one DNO classification.
func (p *PrometheusCollector) IncDNOCategory(category string) {
	if p == nil || p.dno == nil {
		return
	}
	p.dno.WithLabelValues(category).Inc()
}

// IncHotReload increments the counter for the provided file path.
func (p *PrometheusCollector) IncHotReload(file string) {
	if p == nil || p.hotReloads == nil {
		return
	}
	p.hotReloads.WithLabelValues(file).Inc()
}
