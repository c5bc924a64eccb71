package dno

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/evcert/electrical"
)

func TestCheckDNORequirements(t *testing.T) {
	cases := []struct {
		power  float64
		phases electrical.Phases
		want   Category
	}{
		{3.6, electrical.SinglePhase, None},
		{3.68, electrical.SinglePhase, G98},
		{7.0, electrical.SinglePhase, G98},
		{7.4, electrical.SinglePhase, G98},
		{7.5, electrical.SinglePhase, G99},
		{11, electrical.SinglePhase, G99},
		{7.0, electrical.ThreePhase, None},
		{11.04, electrical.ThreePhase, G98},
		{22, electrical.ThreePhase, G98},
		{22.5, electrical.ThreePhase, G99},
		{50, electrical.ThreePhase, G99},
	}
	for _, tc := range cases {
		req, err := CheckDNORequirements(tc.power, tc.phases)
		require.NoError(t, err)
		assert.Equal(t, tc.want, req.Type, "%.2fkW %s", tc.power, tc.phases)
		assert.Equal(t, tc.want != None, req.Required)
		assert.NotEmpty(t, req.Message)
		assert.NotEmpty(t, req.Details)
	}
}

func TestSamePowerDiffersByPhase(t *testing.T) {
	single, err := CheckDNORequirements(7, electrical.SinglePhase)
	require.NoError(t, err)
	three, err := CheckDNORequirements(7, electrical.ThreePhase)
	require.NoError(t, err)
	require.NotEqual(t, single.Type, three.Type)
}

func TestClassifierIsMonotonicInPower(t *testing.T) {
	for _, phases := range []electrical.Phases{electrical.SinglePhase, electrical.ThreePhase} {
		prev := None
		for p := 0.0; p <= 60; p += 0.1 {
			req, err := CheckDNORequirements(p, phases)
			require.NoError(t, err)
			require.True(t, req.Type.AtLeast(prev), "%.1fkW %s dropped from %s to %s", p, phases, prev, req.Type)
			prev = req.Type
		}
	}
}

func TestCheckRejectsInvalidInput(t *testing.T) {
	_, err := CheckDNORequirements(7, 2)
	require.ErrorIs(t, err, electrical.ErrInvalidPhaseConfiguration)
	_, err = CheckDNORequirements(-1, electrical.SinglePhase)
	require.ErrorIs(t, err, electrical.ErrInvalidQuantity)
}

func TestNewClassifierValidatesOrdering(t *testing.T) {
	_, err := NewClassifier(Thresholds{NotifyKW: 8, ApplyKW: 4}, DefaultThreePhase)
	require.Error(t, err)
	_, err = NewClassifier(DefaultSinglePhase, Thresholds{NotifyKW: -1, ApplyKW: 4})
	require.Error(t, err)

	c, err := NewClassifier(Thresholds{NotifyKW: 0, ApplyKW: 3.68}, DefaultThreePhase)
	require.NoError(t, err)
	req, err := c.Check(0, electrical.SinglePhase)
	require.NoError(t, err)
	require.Equal(t, G98, req.Type)
}
