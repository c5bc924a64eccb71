// Package earthloop estimates the earth fault loop impedance of a final
// circuit from the external loop impedance and the circuit conductors.
package earthloop

import (
	"math"

	"github.com/shopspring/decimal"
)

// TemperatureMultiplier raises R1+R2 style readings taken cold to the
// conductor operating temperature (70 °C PVC).
const TemperatureMultiplier = 1.2

// Result is a derived Zs together with the inputs that produced it.
type Result struct {
	CalculatedZs      float64 `json:"calculated_zs"`
	MultiplierApplied float64 `json:"multiplier_applied"`
	Ze                float64 `json:"ze"`
	R1R2              float64 `json:"r1r2"`
}

// RoundedZs returns CalculatedZs to two decimal places, the precision
// certificates record.
func (r Result) RoundedZs() float64 {
	f, _ := decimal.NewFromFloat(r.CalculatedZs).Round(2).Float64()
	return f
}

// CalculateZs returns (Ze + R1+R2) x multiplier. The boolean is false when
// either input is missing, zero, negative or not finite: a Zs is never
// fabricated from incomplete readings.
func CalculateZs(ze, r1r2 float64, applyTemperatureCorrection bool) (Result, bool) {
	if !usable(ze) || !usable(r1r2) {
		return Result{}, false
	}
	multiplier := 1.0
	if applyTemperatureCorrection {
		multiplier = TemperatureMultiplier
	}
	return Result{
		CalculatedZs:      (ze + r1r2) * multiplier,
		MultiplierApplied: multiplier,
		Ze:                ze,
		R1R2:              r1r2,
	}, true
}

func usable(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
