package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidReading marks a reading no instrument can produce: negative or
// not finite.
var ErrInvalidReading = errors.New("invalid reading")

// Value is an optional reading. The zero Value is absent, which keeps an
// unrecorded reading distinct from a recorded 0.
type Value struct {
	v   float64
	set bool
}

// Some returns a present Value.
func Some(v float64) Value {
	return Value{v: v, set: true}
}

// Get returns the reading and whether it was recorded.
func (v Value) Get() (float64, bool) {
	return v.v, v.set
}

// IsSet reports whether the reading was recorded.
func (v Value) IsSet() bool { return v.set }

func (v Value) String() string {
	if !v.set {
		return "<unset>"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// MarshalJSON renders absent values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*v = Value{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return v.parse(s)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode reading: %w", err)
	}
	return v.assign(f)
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node == nil || node.Tag == "!!null" {
		*v = Value{}
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("decode reading: %w", err)
	}
	return v.parse(s)
}

// MarshalYAML renders absent values as null.
func (v Value) MarshalYAML() (interface{}, error) {
	if !v.set {
		return nil, nil
	}
	return v.v, nil
}

// parse reads a reading as typed on a schedule of tests. Instrument
// over-range readings such as ">200" or "≥999" record the bound.
func (v *Value) parse(s string) error {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ">≥")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("reading %q is not a number", s)
	}
	return v.assign(f)
}

func (v *Value) assign(f float64) error {
	if err := checkReading(f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

func checkReading(f float64) error {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return fmt.Errorf("%w: %v is not finite", ErrInvalidReading, f)
	case f < 0:
		return fmt.Errorf("%w: %v is negative", ErrInvalidReading, f)
	}
	return nil
}
