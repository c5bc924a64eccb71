package defaults

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/evcert/chargers"
	"github.com/timzifer/evcert/electrical"
)

func spec74() *chargers.Spec {
	return &chargers.Spec{
		ID:          "test-7kw",
		Make:        "Test",
		Model:       "Seven",
		Modes:       []chargers.Mode{{PowerKW: 7.4, Phases: electrical.SinglePhase}, {PowerKW: 22, Phases: electrical.ThreePhase}},
		SocketType:  chargers.SocketType2,
		Connection:  chargers.Tethered,
		RCDIntegral: true,
	}
}

func TestApplyChargerDefaultsUsesPrimaryMode(t *testing.T) {
	fields, err := ApplyChargerDefaults(spec74())
	require.NoError(t, err)
	require.Equal(t, Fields{
		FieldPowerRating:   7.4,
		FieldDesignCurrent: 32.0,
		FieldPhases:        1,
		FieldSocketType:    "type2",
		FieldConnection:    "tethered",
		FieldRCDIntegral:   true,
		FieldDCProtection:  true,
	}, fields)

	current, err := electrical.PowerToCurrent(fields[FieldPowerRating].(float64), electrical.Phases(fields[FieldPhases].(int)))
	require.NoError(t, err)
	require.Equal(t, 32.0, current)
}

func TestApplyChargerDefaultsOnlySetsResolvedFields(t *testing.T) {
	fields, err := ApplyChargerDefaults(spec74())
	require.NoError(t, err)
	require.Len(t, fields, len(ResolvedFields()))
	for _, key := range ResolvedFields() {
		require.Contains(t, fields, key)
	}
}

func TestApplyChargerDefaultsErrors(t *testing.T) {
	_, err := ApplyChargerDefaults(nil)
	require.ErrorIs(t, err, ErrNoCharger)

	s := spec74()
	s.Modes = nil
	_, err = ApplyChargerDefaults(s)
	require.Error(t, err)
}

func TestSelectAndClear(t *testing.T) {
	form := Fields{"installation_address": "1 High Street", "ze": 0.35, FieldPhases: 3}

	require.NoError(t, Select(form, spec74()))
	require.Equal(t, 1, form[FieldPhases])
	require.Equal(t, "1 High Street", form["installation_address"])

	require.NoError(t, Select(form, nil))
	require.Equal(t, Fields{"installation_address": "1 High Street", "ze": 0.35}, form)

	require.Error(t, Select(nil, spec74()))
}

func TestClearRemovesUserEnteredResolverFields(t *testing.T) {
	form := Fields{
		FieldPowerRating:       11.0,
		FieldSocketType:        "type1",
		"installation_address": "1 High Street",
		"r1r2":                 0.42,
	}
	ClearChargerDefaults(form)
	require.Equal(t, Fields{"installation_address": "1 High Street", "r1r2": 0.42}, form)

	form[FieldConnection] = "socketed"
	require.NoError(t, Select(form, nil))
	require.NotContains(t, form, FieldConnection)
	require.Len(t, form, 2)
}

func TestApplyDoesNotAliasCatalogue(t *testing.T) {
	reg := chargers.Default()
	spec, ok := reg.Get("tesla-wall-connector-gen3")
	require.True(t, ok)
	fields, err := ApplyChargerDefaults(&spec)
	require.NoError(t, err)
	fields[FieldPowerRating] = 1.0

	again, _ := reg.Get("tesla-wall-connector-gen3")
	require.Equal(t, 7.4, again.Modes[0].PowerKW)
	require.False(t, again.RCDIntegral)
}
