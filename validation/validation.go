// Package validation classifies recorded test results against BS 7671 limits.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"
)

// Status is the verdict for one field.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
)

// Field names a validated test result.
type Field string

const (
	FieldZs            Field = "zs"
	FieldInsulation    Field = "insulation_resistance"
	FieldPolarity      Field = "polarity"
	FieldRCDTripTime   Field = "rcd_trip_time"
	FieldRCDTripTime5x Field = "rcd_trip_time_5x"
)

// Fields lists every recognised field in output order.
func Fields() []Field {
	return []Field{FieldZs, FieldInsulation, FieldPolarity, FieldRCDTripTime, FieldRCDTripTime5x}
}

// Polarity is the qualitative polarity check outcome.
type Polarity string

const (
	PolarityUnset     Polarity = ""
	PolarityCorrect   Polarity = "correct"
	PolarityIncorrect Polarity = "incorrect"
)

// ParsePolarity accepts the tick/cross spellings used on schedules.
func ParsePolarity(raw string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "n/a", "-":
		return PolarityUnset, nil
	case "correct", "ok", "pass", "✓", "yes", "true":
		return PolarityCorrect, nil
	case "incorrect", "fail", "✗", "x", "no", "false":
		return PolarityIncorrect, nil
	}
	return PolarityUnset, fmt.Errorf("unknown polarity result %q", raw)
}

// UnmarshalText lets forms send polarity as a loose string.
func (p *Polarity) UnmarshalText(text []byte) error {
	parsed, err := ParsePolarity(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TestResults is the set of readings the validator understands. Insulation
// resistance is in megaohms, trip times in milliseconds, Zs in ohms.
type TestResults struct {
	Zs                   Value    `json:"zs" yaml:"zs"`
	InsulationResistance Value    `json:"insulation_resistance" yaml:"insulation_resistance"`
	Polarity             Polarity `json:"polarity" yaml:"polarity"`
	RCDTripTime          Value    `json:"rcd_trip_time" yaml:"rcd_trip_time"`
	RCDTripTime5x        Value    `json:"rcd_trip_time_5x" yaml:"rcd_trip_time_5x"`
}

// Result is the verdict for one field.
type Result struct {
	Field   Field  `json:"field"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Limits are the pass/fail thresholds.
type Limits struct {
	InsulationMinMOhm float64 `yaml:"insulation_min_mohm" json:"insulation_min_mohm"`
	RCDTripMaxMs      float64 `yaml:"rcd_trip_max_ms" json:"rcd_trip_max_ms"`
	RCDTripMax5xMs    float64 `yaml:"rcd_trip_max_5x_ms" json:"rcd_trip_max_5x_ms"`
}

// DefaultLimits are the BS 7671 values: 1 MΩ minimum insulation resistance
// for a 500 V test, 300 ms at IΔn and 40 ms at 5×IΔn for a general RCD.
func DefaultLimits() Limits {
	return Limits{InsulationMinMOhm: 1.0, RCDTripMaxMs: 300, RCDTripMax5xMs: 40}
}

// WarningRule marks passing readings that should be double-checked. The
// expression sees `value` (the reading) and `limit` (the field's pass/fail
// threshold, or the looked-up max Zs) and must return a bool. Polarity has no
// numeric reading and cannot carry a rule.
type WarningRule struct {
	Field      Field  `yaml:"field" json:"field"`
	Expression string `yaml:"expression" json:"expression"`
	Message    string `yaml:"message,omitempty" json:"message,omitempty"`
}

type warningRule struct {
	program *vm.Program
	message string
}

// Validator evaluates TestResults. It holds only compiled configuration and
// is safe for concurrent use.
type Validator struct {
	limits   Limits
	warnings map[Field]warningRule
	logger   zerolog.Logger
}

// fieldMaxZs names the maximum Zs input in reading errors.
const fieldMaxZs Field = "max_zs"

// ReadingError is an invalid reading for one field. Validate reports one per
// offending field and emits no verdict for it.
type ReadingError struct {
	Field Field
	Err   error
}

func (e *ReadingError) Error() string {
	return string(e.Field) + ": " + e.Err.Error()
}

func (e *ReadingError) Unwrap() error { return e.Err }

// ReadingErrors unpacks the error returned by Validate.
func ReadingErrors(err error) []*ReadingError {
	if err == nil {
		return nil
	}
	var out []*ReadingError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, ReadingErrors(e)...)
		}
		return out
	}
	var re *ReadingError
	if errors.As(err, &re) {
		out = append(out, re)
	}
	return out
}

// NewValidator compiles the warning rules against limits.
func NewValidator(limits Limits, rules []WarningRule) (*Validator, error) {
	if limits.InsulationMinMOhm <= 0 || limits.RCDTripMaxMs <= 0 || limits.RCDTripMax5xMs <= 0 {
		return nil, fmt.Errorf("validation limits must be positive: %+v", limits)
	}
	v := &Validator{limits: limits, warnings: make(map[Field]warningRule, len(rules)), logger: zerolog.Nop()}
	for _, rule := range rules {
		switch rule.Field {
		case FieldZs, FieldInsulation, FieldRCDTripTime, FieldRCDTripTime5x:
		case FieldPolarity:
			return nil, fmt.Errorf("warning rule: field %s has no numeric reading", rule.Field)
		default:
			return nil, fmt.Errorf("warning rule: unknown field %q", rule.Field)
		}
		if _, dup := v.warnings[rule.Field]; dup {
			return nil, fmt.Errorf("warning rule: duplicate rule for %s", rule.Field)
		}
		source := strings.TrimSpace(rule.Expression)
		if source == "" {
			return nil, fmt.Errorf("warning rule %s: expression must not be empty", rule.Field)
		}
		program, err := expr.Compile(source, expr.Env(map[string]interface{}{"value": 0.0, "limit": 0.0}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("warning rule %s: compile: %w", rule.Field, err)
		}
		v.warnings[rule.Field] = warningRule{program: program, message: rule.Message}
	}
	return v, nil
}

var defaultValidator = &Validator{limits: DefaultLimits(), warnings: map[Field]warningRule{}, logger: zerolog.Nop()}

// Default returns a validator with DefaultLimits and no warning band.
func Default() *Validator {
	return defaultValidator
}

// ValidateTestResults validates with the default validator.
func ValidateTestResults(results TestResults, maxZs Value) ([]Result, error) {
	return defaultValidator.Validate(results, maxZs)
}

// WithLogger returns a copy of v that logs warning rule failures to logger.
func (v *Validator) WithLogger(logger zerolog.Logger) *Validator {
	out := *v
	out.logger = logger
	return &out
}

// Limits returns the thresholds in use.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate returns one Result for each recognised field whose inputs are
// present and valid, in Fields order. Zs additionally needs maxZs. Negative
// or non-finite readings get no verdict; they are returned as joined
// *ReadingError values wrapping ErrInvalidReading.
func (v *Validator) Validate(results TestResults, maxZs Value) ([]Result, error) {
	out := make([]Result, 0, len(Fields()))
	var errs []error
	reading := func(field Field, value Value) (float64, bool) {
		f, ok := value.Get()
		if !ok {
			return 0, false
		}
		if err := checkReading(f); err != nil {
			errs = append(errs, &ReadingError{Field: field, Err: err})
			return 0, false
		}
		return f, true
	}

	if zs, ok := reading(FieldZs, results.Zs); ok {
		if limit, ok := reading(fieldMaxZs, maxZs); ok {
			out = append(out, v.ceiling(FieldZs, zs, limit, "Zs", "Ω", "maximum"))
		}
	}
	if ir, ok := reading(FieldInsulation, results.InsulationResistance); ok {
		out = append(out, v.floor(FieldInsulation, ir, v.limits.InsulationMinMOhm))
	}
	switch results.Polarity {
	case PolarityCorrect:
		out = append(out, Result{Field: FieldPolarity, Status: StatusPass, Message: "Polarity correct"})
	case PolarityIncorrect:
		out = append(out, Result{Field: FieldPolarity, Status: StatusFail, Message: "Polarity incorrect: correct before energising"})
	}
	if ms, ok := reading(FieldRCDTripTime, results.RCDTripTime); ok {
		out = append(out, v.ceiling(FieldRCDTripTime, ms, v.limits.RCDTripMaxMs, "RCD trip time at IΔn", "ms", "limit"))
	}
	if ms, ok := reading(FieldRCDTripTime5x, results.RCDTripTime5x); ok {
		out = append(out, v.ceiling(FieldRCDTripTime5x, ms, v.limits.RCDTripMax5xMs, "RCD trip time at 5×IΔn", "ms", "limit"))
	}
	return out, errors.Join(errs...)
}

func (v *Validator) ceiling(field Field, value, limit float64, label, unit, noun string) Result {
	if value > limit {
		return Result{Field: field, Status: StatusFail,
			Message: fmt.Sprintf("%s %s %s exceeds %s %s %s", label, format(value), unit, noun, format(limit), unit)}
	}
	res := Result{Field: field, Status: StatusPass,
		Message: fmt.Sprintf("%s %s %s within %s %s %s", label, format(value), unit, noun, format(limit), unit)}
	return v.applyWarning(res, value, limit)
}

func (v *Validator) floor(field Field, value, limit float64) Result {
	if value < limit {
		return Result{Field: field, Status: StatusFail,
			Message: fmt.Sprintf("Insulation resistance %s MΩ below minimum %s MΩ", format(value), format(limit))}
	}
	res := Result{Field: field, Status: StatusPass,
		Message: fmt.Sprintf("Insulation resistance %s MΩ meets minimum %s MΩ", format(value), format(limit))}
	return v.applyWarning(res, value, limit)
}

func (v *Validator) applyWarning(res Result, value, limit float64) Result {
	rule, ok := v.warnings[res.Field]
	if !ok {
		return res
	}
	out, err := expr.Run(rule.program, map[string]interface{}{"value": value, "limit": limit})
	if err != nil {
		// A rule that fails to run flags the reading.
		v.logger.Warn().Err(err).Str("field", string(res.Field)).Float64("value", value).Msg("warning rule failed")
		res.Status = StatusWarning
		res.Message = res.Message + ": warning rule failed (" + err.Error() + "), check the reading manually"
		return res
	}
	if hit, _ := out.(bool); !hit {
		return res
	}
	res.Status = StatusWarning
	if rule.message != "" {
		res.Message = res.Message + ": " + rule.message
	} else {
		res.Message = res.Message + ": close to the limit, re-test to confirm"
	}
	return res
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
