package engine

import (
	"fmt"

	"github.com/timzifer/evcert/defaults"
	"github.com/timzifer/evcert/dno"
	"github.com/timzifer/evcert/earthloop"
	"github.com/timzifer/evcert/electrical"
	"github.com/timzifer/evcert/protection"
	"github.com/timzifer/evcert/validation"
)

// ProtectionFields are the protective device inputs exactly as the form
// holds them. Empty strings mean "not chosen yet".
type ProtectionFields struct {
	DeviceType string `json:"device_type" yaml:"device_type"`
	Rating     string `json:"rating" yaml:"rating"`
	Curve      string `json:"curve" yaml:"curve"`
}

func (p ProtectionFields) complete() bool {
	return p.DeviceType != "" && p.Rating != "" && p.Curve != ""
}

// Form is a snapshot of the inspection form fields the engine reads.
type Form struct {
	ChargerID             string                 `json:"charger_id,omitempty" yaml:"charger_id,omitempty"`
	PowerKW               validation.Value       `json:"power_kw" yaml:"power_kw"`
	Phases                string                 `json:"phases,omitempty" yaml:"phases,omitempty"`
	Protection            ProtectionFields       `json:"protection" yaml:"protection"`
	Ze                    validation.Value       `json:"ze" yaml:"ze"`
	R1R2                  validation.Value       `json:"r1r2" yaml:"r1r2"`
	TemperatureCorrection *bool                  `json:"temperature_correction,omitempty" yaml:"temperature_correction,omitempty"`
	Tests                 validation.TestResults `json:"tests" yaml:"tests"`
}

// ZsSource says where the Zs used for validation came from.
type ZsSource string

const (
	ZsMeasured ZsSource = "measured"
	ZsDerived  ZsSource = "derived"
)

// Issue reports an input outside its declared domain.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Report is the outcome of Evaluate. Sections whose inputs are missing are
// left nil rather than filled with placeholder values.
type Report struct {
	Defaults       defaults.Fields     `json:"defaults,omitempty"`
	DesignCurrentA *float64            `json:"design_current_a,omitempty"`
	MaxZs          *protection.Entry   `json:"max_zs,omitempty"`
	DerivedZs      *earthloop.Result   `json:"derived_zs,omitempty"`
	ZsSource       ZsSource            `json:"zs_source,omitempty"`
	DNO            *dno.Requirement    `json:"dno,omitempty"`
	Validation     []validation.Result `json:"validation"`
	Issues         []Issue             `json:"issues,omitempty"`
}

// Evaluate runs every component over one form snapshot. Invalid inputs are
// reported as issues and the affected sections are skipped; the rest of the
// report is still produced.
func (e *Engine) Evaluate(form Form) Report {
	e.telemetry.IncEvaluation("evaluate")
	var report Report
	issue := func(field string, err error) {
		report.Issues = append(report.Issues, Issue{Field: field, Message: err.Error()})
	}

	power := form.PowerKW
	var phases electrical.Phases
	if form.Phases != "" {
		parsed, err := electrical.ParsePhases(form.Phases)
		if err != nil {
			issue("phases", err)
		} else {
			phases = parsed
		}
	}

	if form.ChargerID != "" {
		fields, err := e.ChargerDefaults(form.ChargerID)
		if err != nil {
			issue("charger_id", err)
		} else {
			report.Defaults = fields
			if !power.IsSet() {
				if kw, ok := fields[defaults.FieldPowerRating].(float64); ok {
					power = validation.Some(kw)
				}
			}
			if phases == 0 && form.Phases == "" {
				if p, ok := fields[defaults.FieldPhases].(int); ok {
					phases = electrical.Phases(p)
				}
			}
		}
	}

	if kw, ok := power.Get(); ok && phases != 0 {
		current, err := e.PowerToCurrent(kw, phases)
		if err != nil {
			issue("power_kw", err)
		} else {
			report.DesignCurrentA = &current
			req, err := e.CheckDNO(kw, phases)
			if err != nil {
				issue("power_kw", err)
			} else {
				report.DNO = &req
			}
		}
	}

	maxZs := validation.Value{}
	if form.Protection.complete() {
		device, err := protection.ParseDevice(form.Protection.DeviceType, form.Protection.Rating, form.Protection.Curve)
		if err != nil {
			issue("protection", err)
		} else if entry, ok := e.LookupMaxZs(device); ok {
			report.MaxZs = &entry
			maxZs = validation.Some(entry.MaxZs)
		}
	}

	correction := e.temperatureCorrection
	if form.TemperatureCorrection != nil {
		correction = *form.TemperatureCorrection
	}
	tests := form.Tests
	if ze, ok := form.Ze.Get(); ok {
		if r1r2, ok := form.R1R2.Get(); ok {
			if ze <= 0 || r1r2 <= 0 {
				issue("r1r2", fmt.Errorf("%w: Ze %v and R1+R2 %v must be positive", electrical.ErrInvalidQuantity, ze, r1r2))
			} else if derived, ok := e.CalculateZsWith(ze, r1r2, correction); ok {
				report.DerivedZs = &derived
			}
		}
	}
	switch {
	case tests.Zs.IsSet():
		report.ZsSource = ZsMeasured
	case report.DerivedZs != nil:
		tests.Zs = validation.Some(report.DerivedZs.CalculatedZs)
		report.ZsSource = ZsDerived
	}

	verdicts, err := e.Validate(tests, maxZs)
	report.Validation = verdicts
	for _, re := range validation.ReadingErrors(err) {
		issue(string(re.Field), re.Err)
	}

	e.logger.Debug().
		Str("charger", form.ChargerID).
		Int("verdicts", len(report.Validation)).
		Int("issues", len(report.Issues)).
		Msg("form evaluated")
	return report
}
