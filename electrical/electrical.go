// Package electrical converts between power and current for the UK low
// voltage supplies an EV charger is connected to.
package electrical

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// SinglePhaseVoltage is the nominal UK line-to-neutral voltage.
	SinglePhaseVoltage = 230.0
	// ThreePhaseVoltage is the nominal UK line-to-line voltage.
	ThreePhaseVoltage = 400.0
)

var (
	// ErrInvalidPhaseConfiguration is returned when the phase count is not 1 or 3.
	ErrInvalidPhaseConfiguration = errors.New("invalid phase configuration")
	// ErrInvalidQuantity is returned for negative, NaN or infinite inputs.
	ErrInvalidQuantity = errors.New("invalid electrical quantity")
)

var sqrt3 = math.Sqrt(3)

// Phases is the number of supply phases feeding a circuit.
type Phases int

const (
	SinglePhase Phases = 1
	ThreePhase  Phases = 3
)

// Valid reports whether p is a supported supply configuration.
func (p Phases) Valid() bool {
	return p == SinglePhase || p == ThreePhase
}

func (p Phases) String() string {
	switch p {
	case SinglePhase:
		return "single-phase"
	case ThreePhase:
		return "three-phase"
	default:
		return fmt.Sprintf("phases(%d)", int(p))
	}
}

// Check returns ErrInvalidPhaseConfiguration for anything other than 1 or 3.
func (p Phases) Check() error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhaseConfiguration, int(p))
	}
	return nil
}

// ParsePhases accepts the spellings a form uses for the supply type
// ("1", "3", "single", "three", "single-phase", "1ph", ...).
func ParsePhases(raw string) (Phases, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "single", "single-phase", "single_phase", "1ph", "1p":
		return SinglePhase, nil
	case "three", "three-phase", "three_phase", "3ph", "3p":
		return ThreePhase, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhaseConfiguration, raw)
	}
	p := Phases(n)
	if err := p.Check(); err != nil {
		return 0, err
	}
	return p, nil
}

// PowerToCurrent returns the line current in whole amps drawn by a load of
// powerKW on the given supply.
func PowerToCurrent(powerKW float64, phases Phases) (float64, error) {
	if err := phases.Check(); err != nil {
		return 0, err
	}
	if err := checkQuantity("power", powerKW); err != nil {
		return 0, err
	}
	watts := powerKW * 1000
	var amps float64
	if phases == SinglePhase {
		amps = watts / SinglePhaseVoltage
	} else {
		amps = watts / (sqrt3 * ThreePhaseVoltage)
	}
	return round(amps, 0), nil
}

// CurrentToPower returns the power in kW (one decimal place) delivered by
// currentA per line on the given supply.
func CurrentToPower(currentA float64, phases Phases) (float64, error) {
	if err := phases.Check(); err != nil {
		return 0, err
	}
	if err := checkQuantity("current", currentA); err != nil {
		return 0, err
	}
	var watts float64
	if phases == SinglePhase {
		watts = currentA * SinglePhaseVoltage
	} else {
		watts = currentA * sqrt3 * ThreePhaseVoltage
	}
	return round(watts/1000, 1), nil
}

// RoundTripTolerance is the largest drift, in kW, that a
// power -> current -> power conversion may show on the given supply.
func RoundTripTolerance(phases Phases) float64 {
	halfAmp := 0.5 * SinglePhaseVoltage / 1000
	if phases == ThreePhase {
		halfAmp = 0.5 * sqrt3 * ThreePhaseVoltage / 1000
	}
	return halfAmp + 0.05
}

func checkQuantity(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s %v", ErrInvalidQuantity, name, v)
	}
	return nil
}

// round rounds half away from zero using decimal arithmetic so that values
// such as 7.35 do not fall foul of binary representation.
func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
