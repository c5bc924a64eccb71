// Package defaults turns a charger selection into inspection form defaults.
package defaults

import (
	"errors"
	"fmt"

	"github.com/timzifer/evcert/chargers"
	"github.com/timzifer/evcert/electrical"
)

// ErrNoCharger is returned by ApplyChargerDefaults when no charger is given.
var ErrNoCharger = errors.New("no charger selected")

// Form field keys owned by the resolver.
const (
	FieldPowerRating   = "power_rating_kw"
	FieldDesignCurrent = "design_current_a"
	FieldPhases        = "phases"
	FieldSocketType    = "socket_type"
	FieldConnection    = "connection_type"
	FieldRCDIntegral   = "rcd_integral"
	FieldDCProtection  = "dc_protection_provided"
)

var resolvedFields = []string{
	FieldPowerRating,
	FieldDesignCurrent,
	FieldPhases,
	FieldSocketType,
	FieldConnection,
	FieldRCDIntegral,
	FieldDCProtection,
}

// ResolvedFields lists every key ApplyChargerDefaults may set.
func ResolvedFields() []string {
	return append([]string(nil), resolvedFields...)
}

// Fields is a flat set of form values keyed by field name.
type Fields map[string]interface{}

// ApplyChargerDefaults derives the resolver's fields from the charger's
// primary (first listed) mode. The returned map holds primitive copies only.
func ApplyChargerDefaults(spec *chargers.Spec) (Fields, error) {
	if spec == nil {
		return nil, ErrNoCharger
	}
	mode, ok := spec.PrimaryMode()
	if !ok {
		return nil, fmt.Errorf("charger %s has no supported modes", spec.ID)
	}
	current, err := electrical.PowerToCurrent(mode.PowerKW, mode.Phases)
	if err != nil {
		return nil, fmt.Errorf("charger %s: %w", spec.ID, err)
	}
	return Fields{
		FieldPowerRating:   mode.PowerKW,
		FieldDesignCurrent: current,
		FieldPhases:        int(mode.Phases),
		FieldSocketType:    string(spec.SocketType),
		FieldConnection:    string(spec.Connection),
		FieldRCDIntegral:   spec.RCDIntegral,
		FieldDCProtection:  spec.RCDIntegral,
	}, nil
}

// ClearChargerDefaults deletes every ResolvedFields key from form, whoever
// set it. A value typed into one of those fields before a charger was
// chosen, such as a manual power rating, is removed as well. Callers that
// need to keep such input must save it before clearing.
func ClearChargerDefaults(form Fields) {
	for _, key := range resolvedFields {
		delete(form, key)
	}
}

// Select applies spec to form, or clears the resolver's fields when spec is
// nil. Either way every ResolvedFields key is first cleared as
// ClearChargerDefaults does, user-entered values included. Fields outside
// ResolvedFields are never touched.
func Select(form Fields, spec *chargers.Spec) error {
	if form == nil {
		return errors.New("form must not be nil")
	}
	if spec == nil {
		ClearChargerDefaults(form)
		return nil
	}
	values, err := ApplyChargerDefaults(spec)
	if err != nil {
		return err
	}
	ClearChargerDefaults(form)
	for k, v := range values {
		form[k] = v
	}
	return nil
}
