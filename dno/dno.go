// Package dno estimates which Distribution Network Operator process an
// installation falls under.
package dno

import (
	"fmt"
	"math"

	"github.com/timzifer/evcert/electrical"
)

// Category is the notification route an installer should expect.
type Category string

const (
	None Category = "none"
	G98  Category = "G98"
	G99  Category = "G99"
)

func (c Category) rank() int {
	switch c {
	case G98:
		return 1
	case G99:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether c is the same as or a more involved route than other.
func (c Category) AtLeast(other Category) bool {
	return c.rank() >= other.rank()
}

// Requirement is the outcome of a classification.
type Requirement struct {
	Required bool     `json:"required"`
	Type     Category `json:"type"`
	Message  string   `json:"message"`
	Details  string   `json:"details"`
}

// Thresholds bound the categories for one supply configuration. Power below
// NotifyKW needs nothing, power from NotifyKW up to ApplyKW is G98, and
// ApplyKW or above is G99.
type Thresholds struct {
	NotifyKW float64 `yaml:"notify_kw" json:"notify_kw"`
	ApplyKW  float64 `yaml:"apply_kw" json:"apply_kw"`
}

func (t Thresholds) validate() error {
	if t.NotifyKW < 0 || t.ApplyKW < t.NotifyKW {
		return fmt.Errorf("dno thresholds must satisfy 0 <= notify (%v) <= apply (%v)", t.NotifyKW, t.ApplyKW)
	}
	return nil
}

// DefaultSinglePhase and DefaultThreePhase reflect 16 A per phase for the
// notify point.
var (
	DefaultSinglePhase = Thresholds{NotifyKW: 3.68, ApplyKW: 7.5}
	DefaultThreePhase  = Thresholds{NotifyKW: 11.04, ApplyKW: 22.5}
)

// Classifier maps installed power to a DNO category.
type Classifier struct {
	single Thresholds
	three  Thresholds
}

// NewClassifier validates the thresholds and returns a classifier.
func NewClassifier(single, three Thresholds) (*Classifier, error) {
	if err := single.validate(); err != nil {
		return nil, fmt.Errorf("single-phase: %w", err)
	}
	if err := three.validate(); err != nil {
		return nil, fmt.Errorf("three-phase: %w", err)
	}
	return &Classifier{single: single, three: three}, nil
}

var defaultClassifier = &Classifier{single: DefaultSinglePhase, three: DefaultThreePhase}

// Default returns the classifier built from the default thresholds.
func Default() *Classifier {
	return defaultClassifier
}

// CheckDNORequirements classifies with the default thresholds.
func CheckDNORequirements(powerKW float64, phases electrical.Phases) (Requirement, error) {
	return defaultClassifier.Check(powerKW, phases)
}

// Thresholds returns the bounds used for the given supply.
func (c *Classifier) Thresholds(phases electrical.Phases) (Thresholds, error) {
	if err := phases.Check(); err != nil {
		return Thresholds{}, err
	}
	if phases == electrical.ThreePhase {
		return c.three, nil
	}
	return c.single, nil
}

// Check classifies an installation of powerKW on the given supply.
func (c *Classifier) Check(powerKW float64, phases electrical.Phases) (Requirement, error) {
	limits, err := c.Thresholds(phases)
	if err != nil {
		return Requirement{}, err
	}
	if math.IsNaN(powerKW) || math.IsInf(powerKW, 0) || powerKW < 0 {
		return Requirement{}, fmt.Errorf("%w: power %v", electrical.ErrInvalidQuantity, powerKW)
	}

	switch {
	case powerKW >= limits.ApplyKW:
		return Requirement{
			Required: true,
			Type:     G99,
			Message:  "G99 application required",
			Details: fmt.Sprintf("%.2f kW on a %s supply is at or above %.2f kW. Apply to the DNO and wait for approval before energising the charger.",
				powerKW, phases, limits.ApplyKW),
		}, nil
	case powerKW >= limits.NotifyKW:
		return Requirement{
			Required: true,
			Type:     G98,
			Message:  "G98 notification required",
			Details: fmt.Sprintf("%.2f kW on a %s supply is between %.2f kW and %.2f kW. Install, then notify the DNO within 28 days of commissioning.",
				powerKW, phases, limits.NotifyKW, limits.ApplyKW),
		}, nil
	default:
		return Requirement{
			Required: false,
			Type:     None,
			Message:  "No DNO notification required",
			Details: fmt.Sprintf("%.2f kW on a %s supply is below the %.2f kW notification threshold.",
				powerKW, phases, limits.NotifyKW),
		}, nil
	}
}
