// Package engine bundles the compliance components behind one value that a
// form layer, request handler or message bridge can call.
package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/chargers"
	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/defaults"
	"github.com/timzifer/evcert/dno"
	"github.com/timzifer/evcert/earthloop"
	"github.com/timzifer/evcert/electrical"
	"github.com/timzifer/evcert/protection"
	"github.com/timzifer/evcert/telemetry"
	"github.com/timzifer/evcert/validation"
)

// Engine is immutable after New and safe for concurrent use.
type Engine struct {
	registry              *chargers.Registry
	classifier            *dno.Classifier
	validator             *validation.Validator
	temperatureCorrection bool

	logger    zerolog.Logger
	telemetry telemetry.Collector
}

// New builds an engine from the rules and catalogues in cfg. A nil cfg uses
// config.Default().
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := settings{
		logger:    zerolog.Nop(),
		telemetry: telemetry.Noop(),
		registry:  chargers.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&s); err != nil {
			return nil, err
		}
	}
	if s.registry == nil {
		return nil, errors.New("charger registry must not be nil")
	}

	registry := s.registry
	for _, path := range cfg.Chargers.Catalogues {
		extra, err := chargers.LoadCatalogueFile(path)
		if err != nil {
			return nil, err
		}
		registry, err = registry.With(extra...)
		if err != nil {
			return nil, fmt.Errorf("merge catalogue %s: %w", path, err)
		}
	}

	classifier, err := dno.NewClassifier(cfg.Rules.DNO.SinglePhase, cfg.Rules.DNO.ThreePhase)
	if err != nil {
		return nil, fmt.Errorf("dno rules: %w", err)
	}
	validator, err := validation.NewValidator(cfg.Rules.Limits, cfg.Rules.Warnings)
	if err != nil {
		return nil, fmt.Errorf("validation rules: %w", err)
	}
	validator = validator.WithLogger(s.logger)

	s.logger.Debug().
		Int("chargers", registry.Len()).
		Int("warning_rules", len(cfg.Rules.Warnings)).
		Bool("temperature_correction", cfg.Rules.ApplyTemperatureCorrection()).
		Msg("compliance engine ready")

	return &Engine{
		registry:              registry,
		classifier:            classifier,
		validator:             validator,
		temperatureCorrection: cfg.Rules.ApplyTemperatureCorrection(),
		logger:                s.logger,
		telemetry:             s.telemetry,
	}, nil
}

// Chargers returns the charger registry.
func (e *Engine) Chargers() *chargers.Registry {
	return e.registry
}

// Validator returns the configured validator.
func (e *Engine) Validator() *validation.Validator {
	return e.validator
}

// TemperatureCorrection reports the default for derived Zs.
func (e *Engine) TemperatureCorrection() bool {
	return e.temperatureCorrection
}

// ChargerDefaults resolves the form defaults for a catalogue entry.
func (e *Engine) ChargerDefaults(id string) (defaults.Fields, error) {
	e.telemetry.IncEvaluation("charger_defaults")
	spec, err := e.registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	return defaults.ApplyChargerDefaults(&spec)
}

// SelectCharger applies the defaults for id to form; an empty id clears
// them. Clearing removes every resolver field, including values the user
// entered before choosing a charger.
func (e *Engine) SelectCharger(form defaults.Fields, id string) error {
	e.telemetry.IncEvaluation("select_charger")
	if id == "" {
		return defaults.Select(form, nil)
	}
	spec, err := e.registry.Lookup(id)
	if err != nil {
		return err
	}
	return defaults.Select(form, &spec)
}

// PowerToCurrent converts kW to line current.
func (e *Engine) PowerToCurrent(powerKW float64, phases electrical.Phases) (float64, error) {
	e.telemetry.IncEvaluation("power_to_current")
	return electrical.PowerToCurrent(powerKW, phases)
}

// CurrentToPower converts line current to kW.
func (e *Engine) CurrentToPower(currentA float64, phases electrical.Phases) (float64, error) {
	e.telemetry.IncEvaluation("current_to_power")
	return electrical.CurrentToPower(currentA, phases)
}

// LookupMaxZs resolves the tabulated maximum Zs for a device.
func (e *Engine) LookupMaxZs(device protection.Device) (protection.Entry, bool) {
	e.telemetry.IncEvaluation("lookup_max_zs")
	entry, ok := protection.Lookup(device)
	if !ok {
		e.telemetry.IncLookupMiss(string(device.Type))
		e.logger.Debug().Str("device", device.String()).Msg("no tabulated maximum Zs")
	}
	return entry, ok
}

// CalculateZs derives Zs using the configured temperature correction.
func (e *Engine) CalculateZs(ze, r1r2 float64) (earthloop.Result, bool) {
	return e.CalculateZsWith(ze, r1r2, e.temperatureCorrection)
}

// CalculateZsWith derives Zs with an explicit temperature correction choice.
func (e *Engine) CalculateZsWith(ze, r1r2 float64, applyTemperatureCorrection bool) (earthloop.Result, bool) {
	e.telemetry.IncEvaluation("calculate_zs")
	return earthloop.CalculateZs(ze, r1r2, applyTemperatureCorrection)
}

// CheckDNO classifies the installation with the configured thresholds.
func (e *Engine) CheckDNO(powerKW float64, phases electrical.Phases) (dno.Requirement, error) {
	e.telemetry.IncEvaluation("check_dno")
	req, err := e.classifier.Check(powerKW, phases)
	if err != nil {
		return dno.Requirement{}, err
	}
	e.telemetry.IncDNOCategory(string(req.Type))
	return req, nil
}

// Validate runs the test result validator. Invalid readings get no verdict
// and are returned as *validation.ReadingError values.
func (e *Engine) Validate(results validation.TestResults, maxZs validation.Value) ([]validation.Result, error) {
	e.telemetry.IncEvaluation("validate")
	out, err := e.validator.Validate(results, maxZs)
	for _, r := range out {
		e.telemetry.IncVerdict(string(r.Field), string(r.Status))
	}
	for _, re := range validation.ReadingErrors(err) {
		e.telemetry.IncVerdict(string(re.Field), "invalid")
	}
	return out, err
}
