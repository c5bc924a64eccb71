package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func byField(results []Result) map[Field]Result {
	out := make(map[Field]Result, len(results))
	for _, r := range results {
		out[r.Field] = r
	}
	return out
}

func mustValidate(t *testing.T, results TestResults, maxZs Value) []Result {
	t.Helper()
	out, err := ValidateTestResults(results, maxZs)
	require.NoError(t, err)
	return out
}

func mustRun(t *testing.T, v *Validator, results TestResults, maxZs Value) []Result {
	t.Helper()
	out, err := v.Validate(results, maxZs)
	require.NoError(t, err)
	return out
}

func TestZsAgainstMaximum(t *testing.T) {
	got := mustValidate(t, TestResults{Zs: Some(0.50)}, Some(1.09))
	require.Len(t, got, 1)
	require.Equal(t, FieldZs, got[0].Field)
	require.Equal(t, StatusPass, got[0].Status)

	got = mustValidate(t, TestResults{Zs: Some(1.50)}, Some(1.09))
	require.Len(t, got, 1)
	require.Equal(t, StatusFail, got[0].Status)
	require.Contains(t, got[0].Message, "1.09")

	got = mustValidate(t, TestResults{Zs: Some(1.09)}, Some(1.09))
	require.Equal(t, StatusPass, got[0].Status)
}

func TestZsSkippedWithoutBothValues(t *testing.T) {
	require.Empty(t, mustValidate(t, TestResults{Zs: Some(0.5)}, Value{}))
	require.Empty(t, mustValidate(t, TestResults{}, Some(1.09)))
}

func TestInsulationResistance(t *testing.T) {
	got := byField(mustValidate(t, TestResults{InsulationResistance: Some(0.5)}, Value{}))
	require.Equal(t, StatusFail, got[FieldInsulation].Status)

	got = byField(mustValidate(t, TestResults{InsulationResistance: Some(200)}, Value{}))
	require.Equal(t, StatusPass, got[FieldInsulation].Status)

	got = byField(mustValidate(t, TestResults{InsulationResistance: Some(1.0)}, Value{}))
	require.Equal(t, StatusPass, got[FieldInsulation].Status)

	got = byField(mustValidate(t, TestResults{}, Value{}))
	_, present := got[FieldInsulation]
	require.False(t, present)
}

func TestZeroReadingIsNotAbsent(t *testing.T) {
	got := byField(mustValidate(t, TestResults{InsulationResistance: Some(0)}, Value{}))
	require.Equal(t, StatusFail, got[FieldInsulation].Status)
}

func TestPolarity(t *testing.T) {
	got := byField(mustValidate(t, TestResults{Polarity: PolarityCorrect}, Value{}))
	require.Equal(t, StatusPass, got[FieldPolarity].Status)

	got = byField(mustValidate(t, TestResults{Polarity: PolarityIncorrect}, Value{}))
	require.Equal(t, StatusFail, got[FieldPolarity].Status)

	require.Empty(t, mustValidate(t, TestResults{Polarity: PolarityUnset}, Value{}))
}

func TestRCDTripTimes(t *testing.T) {
	got := byField(mustValidate(t, TestResults{RCDTripTime: Some(25), RCDTripTime5x: Some(45)}, Value{}))
	require.Equal(t, StatusPass, got[FieldRCDTripTime].Status)
	require.Equal(t, StatusFail, got[FieldRCDTripTime5x].Status)

	got = byField(mustValidate(t, TestResults{RCDTripTime: Some(301), RCDTripTime5x: Some(40)}, Value{}))
	require.Equal(t, StatusFail, got[FieldRCDTripTime].Status)
	require.Equal(t, StatusPass, got[FieldRCDTripTime5x].Status)
}

func TestValidatorIsTotalAndOrdered(t *testing.T) {
	results := TestResults{
		Zs:                   Some(0.8),
		InsulationResistance: Some(299),
		Polarity:             PolarityCorrect,
		RCDTripTime:          Some(22),
		RCDTripTime5x:        Some(12),
	}
	got := mustValidate(t, results, Some(1.37))
	require.Len(t, got, len(Fields()))
	for i, field := range Fields() {
		assert.Equal(t, field, got[i].Field)
		assert.Equal(t, StatusPass, got[i].Status)
		assert.NotEmpty(t, got[i].Message)
	}
	require.Equal(t, got, mustValidate(t, results, Some(1.37)))
}

func TestWarningBand(t *testing.T) {
	v, err := NewValidator(DefaultLimits(), []WarningRule{
		{Field: FieldRCDTripTime, Expression: "value > limit * 0.9"},
		{Field: FieldZs, Expression: "value >= limit * 0.8", Message: "Zs above 80% of maximum"},
		{Field: FieldInsulation, Expression: "value < limit * 2"},
	})
	require.NoError(t, err)

	got := byField(mustRun(t, v, TestResults{
		Zs:                   Some(1.0),
		InsulationResistance: Some(1.5),
		RCDTripTime:          Some(280),
		RCDTripTime5x:        Some(39),
	}, Some(1.09)))
	assert.Equal(t, StatusWarning, got[FieldZs].Status)
	assert.Contains(t, got[FieldZs].Message, "80%")
	assert.Equal(t, StatusWarning, got[FieldInsulation].Status)
	assert.Equal(t, StatusWarning, got[FieldRCDTripTime].Status)
	assert.Equal(t, StatusPass, got[FieldRCDTripTime5x].Status)

	got = byField(mustRun(t, v, TestResults{RCDTripTime: Some(350), Zs: Some(0.3)}, Some(1.09)))
	assert.Equal(t, StatusFail, got[FieldRCDTripTime].Status)
	assert.Equal(t, StatusPass, got[FieldZs].Status)
}

func TestNewValidatorRejectsBadRules(t *testing.T) {
	cases := []WarningRule{
		{Field: FieldPolarity, Expression: "true"},
		{Field: "earth_electrode", Expression: "true"},
		{Field: FieldZs, Expression: " "},
		{Field: FieldZs, Expression: "value +"},
		{Field: FieldZs, Expression: "value * 2"},
	}
	for _, rule := range cases {
		_, err := NewValidator(DefaultLimits(), []WarningRule{rule})
		require.Error(t, err, "%+v", rule)
	}

	_, err := NewValidator(DefaultLimits(), []WarningRule{
		{Field: FieldZs, Expression: "true"},
		{Field: FieldZs, Expression: "false"},
	})
	require.Error(t, err)

	_, err = NewValidator(Limits{}, nil)
	require.Error(t, err)
}

func TestCustomLimits(t *testing.T) {
	v, err := NewValidator(Limits{InsulationMinMOhm: 2, RCDTripMaxMs: 40, RCDTripMax5xMs: 40}, nil)
	require.NoError(t, err)
	got := byField(mustRun(t, v, TestResults{InsulationResistance: Some(1.5), RCDTripTime: Some(45)}, Value{}))
	require.Equal(t, StatusFail, got[FieldInsulation].Status)
	require.Equal(t, StatusFail, got[FieldRCDTripTime].Status)
}

func TestDecodeTestResults(t *testing.T) {
	var fromJSON TestResults
	require.NoError(t, json.Unmarshal([]byte(`{"zs":"0.45","insulation_resistance":">200","polarity":"correct","rcd_trip_time":25,"rcd_trip_time_5x":null}`), &fromJSON))
	require.Equal(t, Some(0.45), fromJSON.Zs)
	require.Equal(t, Some(200), fromJSON.InsulationResistance)
	require.Equal(t, PolarityCorrect, fromJSON.Polarity)
	require.Equal(t, Some(25), fromJSON.RCDTripTime)
	require.False(t, fromJSON.RCDTripTime5x.IsSet())

	var fromYAML TestResults
	require.NoError(t, yaml.Unmarshal([]byte("zs: 0.45\ninsulation_resistance: \"\"\npolarity: incorrect\nrcd_trip_time_5x: 18\n"), &fromYAML))
	require.Equal(t, Some(0.45), fromYAML.Zs)
	require.False(t, fromYAML.InsulationResistance.IsSet())
	require.Equal(t, PolarityIncorrect, fromYAML.Polarity)
	require.Equal(t, Some(18), fromYAML.RCDTripTime5x)

	var bad TestResults
	require.Error(t, json.Unmarshal([]byte(`{"zs":"abc"}`), &bad))
	require.Error(t, json.Unmarshal([]byte(`{"polarity":"maybe"}`), &bad))
}

func TestValueJSONRoundTripKeepsAbsence(t *testing.T) {
	out, err := json.Marshal(TestResults{Zs: Some(0)})
	require.NoError(t, err)
	require.Contains(t, string(out), `"zs":0`)
	require.Contains(t, string(out), `"insulation_resistance":null`)
}

func TestNegativeReadingsGetNoVerdict(t *testing.T) {
	cases := []struct {
		name    string
		results TestResults
		maxZs   Value
		field   Field
	}{
		{"zs", TestResults{Zs: Some(-0.4)}, Some(1.09), FieldZs},
		{"max zs", TestResults{Zs: Some(0.4)}, Some(-1.09), fieldMaxZs},
		{"insulation", TestResults{InsulationResistance: Some(-5)}, Value{}, FieldInsulation},
		{"rcd", TestResults{RCDTripTime: Some(-10)}, Value{}, FieldRCDTripTime},
		{"rcd 5x", TestResults{RCDTripTime5x: Some(-1)}, Value{}, FieldRCDTripTime5x},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateTestResults(tc.results, tc.maxZs)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidReading))
			assert.Empty(t, got)

			readings := ReadingErrors(err)
			require.Len(t, readings, 1)
			assert.Equal(t, tc.field, readings[0].Field)
			assert.Contains(t, err.Error(), "negative")
		})
	}
}

func TestInvalidReadingDoesNotHideOthers(t *testing.T) {
	got, err := ValidateTestResults(TestResults{
		Zs:                   Some(-0.4),
		InsulationResistance: Some(-1),
		Polarity:             PolarityCorrect,
		RCDTripTime:          Some(25),
	}, Some(1.09))
	require.Len(t, ReadingErrors(err), 2)

	fields := byField(got)
	require.Len(t, fields, 2)
	assert.Equal(t, StatusPass, fields[FieldPolarity].Status)
	assert.Equal(t, StatusPass, fields[FieldRCDTripTime].Status)
}

func TestDecodeRejectsNegativeReadings(t *testing.T) {
	inputs := []string{
		`{"zs":-0.4}`,
		`{"zs":"-0.4"}`,
		`{"insulation_resistance":"-200"}`,
		`{"rcd_trip_time":-25}`,
		`{"rcd_trip_time_5x":"-1"}`,
	}
	for _, in := range inputs {
		var results TestResults
		err := json.Unmarshal([]byte(in), &results)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidReading), in)
	}

	var fromYAML TestResults
	require.Error(t, yaml.Unmarshal([]byte("zs: -0.4\n"), &fromYAML))

	var zero TestResults
	require.NoError(t, json.Unmarshal([]byte(`{"insulation_resistance":0}`), &zero))
	require.Equal(t, Some(0), zero.InsulationResistance)
}

func TestWarningRuleRuntimeErrorFlagsReading(t *testing.T) {
	var buf bytes.Buffer
	v, err := NewValidator(DefaultLimits(), []WarningRule{
		{Field: FieldRCDTripTime, Expression: "int(value) % int(limit - limit) == 0"},
	})
	require.NoError(t, err)
	v = v.WithLogger(zerolog.New(&buf))

	got := byField(mustRun(t, v, TestResults{RCDTripTime: Some(290)}, Value{}))
	res := got[FieldRCDTripTime]
	assert.Equal(t, StatusWarning, res.Status)
	assert.Contains(t, res.Message, "warning rule failed")
	assert.Contains(t, buf.String(), "warning rule failed")
	assert.Contains(t, buf.String(), string(FieldRCDTripTime))

	// A failing reading keeps its verdict.
	got = byField(mustRun(t, v, TestResults{RCDTripTime: Some(310)}, Value{}))
	assert.Equal(t, StatusFail, got[FieldRCDTripTime].Status)
}
