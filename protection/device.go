package protection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownDeviceType is returned when a device type string is not MCB, RCBO or MCCB.
	ErrUnknownDeviceType = errors.New("unknown protective device type")
	// ErrUnknownCurve is returned when a tripping curve string is not B, C or D.
	ErrUnknownCurve = errors.New("unknown tripping curve")
	// ErrNonStandardRating is returned when a rating is not in StandardRatings.
	ErrNonStandardRating = errors.New("non-standard device rating")
)

// DeviceType identifies the family of overcurrent protective device.
type DeviceType string

const (
	MCB  DeviceType = "MCB"
	RCBO DeviceType = "RCBO"
	MCCB DeviceType = "MCCB"
)

// Curve is the instantaneous tripping characteristic of a device.
type Curve string

const (
	CurveB Curve = "B"
	CurveC Curve = "C"
	CurveD Curve = "D"
)

var standardRatings = []int{6, 10, 16, 20, 25, 32, 40, 50, 63, 80, 100, 125}

// StandardRatings returns the rated currents, in amps, a device may carry.
func StandardRatings() []int {
	out := make([]int, len(standardRatings))
	copy(out, standardRatings)
	return out
}

// IsStandardRating reports whether rating is one of StandardRatings.
func IsStandardRating(rating int) bool {
	for _, r := range standardRatings {
		if r == rating {
			return true
		}
	}
	return false
}

// Device is the lookup key built from the protective device fields of a form.
type Device struct {
	Type   DeviceType
	Rating int
	Curve  Curve
}

func (d Device) String() string {
	return fmt.Sprintf("%s %s%d", d.Type, d.Curve, d.Rating)
}

// ParseDeviceType normalises a device type entered on a form.
func ParseDeviceType(raw string) (DeviceType, error) {
	switch t := DeviceType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case MCB, RCBO, MCCB:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceType, raw)
}

// ParseCurve normalises a curve entered as "B", "type c", "Type-D" and similar.
func ParseCurve(raw string) (Curve, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "TYPE")
	value = strings.TrimLeft(value, " -_")
	switch c := Curve(value); c {
	case CurveB, CurveC, CurveD:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurve, raw)
}

// ParseRating accepts "32", "32A" or "32 A".
func ParseRating(raw string) (int, error) {
	value := strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(raw)), "A"))
	rating, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNonStandardRating, raw)
	}
	if !IsStandardRating(rating) {
		return 0, fmt.Errorf("%w: %d", ErrNonStandardRating, rating)
	}
	return rating, nil
}

// ParseDevice builds a Device from the three raw form strings.
func ParseDevice(deviceType, rating, curve string) (Device, error) {
	t, err := ParseDeviceType(deviceType)
	if err != nil {
		return Device{}, err
	}
	r, err := ParseRating(rating)
	if err != nil {
		return Device{}, err
	}
	c, err := ParseCurve(curve)
	if err != nil {
		return Device{}, err
	}
	return Device{Type: t, Rating: r, Curve: c}, nil
}
