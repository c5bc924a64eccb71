package protection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupMaxZsKnownEntries(t *testing.T) {
	cases := []struct {
		device DeviceType
		rating int
		curve  Curve
		want   float64
	}{
		{MCB, 32, CurveB, 1.37},
		{MCB, 40, CurveB, 1.09},
		{MCB, 20, CurveC, 1.09},
		{RCBO, 32, CurveB, 1.37},
		{RCBO, 40, CurveC, 0.55},
		{MCB, 10, CurveD, 1.09},
		{MCCB, 100, CurveC, 0.22},
	}
	for _, tc := range cases {
		entry, ok := LookupMaxZs(tc.device, tc.rating, tc.curve)
		require.True(t, ok, "%s %s%d", tc.device, tc.curve, tc.rating)
		assert.Equal(t, tc.want, entry.MaxZs)
		assert.NotEmpty(t, entry.Source)
		assert.NotEmpty(t, entry.Notes)
	}
}

func TestLookupMaxZsUnknownCombinationsHaveNoResult(t *testing.T) {
	cases := []Device{
		{Type: MCB, Rating: 6, Curve: CurveD},
		{Type: RCBO, Rating: 6, Curve: CurveD},
		{Type: MCB, Rating: 33, Curve: CurveB},
		{Type: MCCB, Rating: 32, Curve: CurveB},
		{Type: "RCD", Rating: 32, Curve: CurveB},
		{Type: MCB, Rating: 32, Curve: "K"},
		{},
	}
	for _, d := range cases {
		entry, ok := Lookup(d)
		assert.False(t, ok, d.String())
		assert.Zero(t, entry)
	}
}

func TestEveryStandardTripleIsEitherTabulatedOrAbsent(t *testing.T) {
	for _, dt := range []DeviceType{MCB, RCBO, MCCB} {
		for _, rating := range StandardRatings() {
			for _, curve := range []Curve{CurveB, CurveC, CurveD} {
				entry, ok := LookupMaxZs(dt, rating, curve)
				if ok {
					assert.Greater(t, entry.MaxZs, 0.0)
				} else {
					assert.Zero(t, entry.MaxZs)
				}
			}
		}
	}
}

func TestLookupIsDeterministic(t *testing.T) {
	first, ok1 := LookupMaxZs(MCB, 32, CurveB)
	second, ok2 := LookupMaxZs(MCB, 32, CurveB)
	require.Equal(t, ok1, ok2)
	require.Equal(t, first, second)
}

func TestMaxZsDecreasesWithRating(t *testing.T) {
	for _, curve := range []Curve{CurveB, CurveC, CurveD} {
		prev := 0.0
		for i, rating := range StandardRatings() {
			entry, ok := LookupMaxZs(MCB, rating, curve)
			if !ok {
				continue
			}
			if i > 0 && prev > 0 {
				assert.Less(t, entry.MaxZs, prev, "%s%d", curve, rating)
			}
			prev = entry.MaxZs
		}
	}
}

func TestEntriesReturnsSortedCopy(t *testing.T) {
	rows := Entries()
	require.NotEmpty(t, rows)
	require.Equal(t, MCB, rows[0].Device.Type)
	require.Equal(t, CurveB, rows[0].Device.Curve)
	require.Equal(t, 6, rows[0].Device.Rating)

	rows[0].Entry.MaxZs = 99
	entry, ok := LookupMaxZs(MCB, 6, CurveB)
	require.True(t, ok)
	require.Equal(t, 7.28, entry.MaxZs)
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice(" rcbo ", "32A", "Type B")
	require.NoError(t, err)
	require.Equal(t, Device{Type: RCBO, Rating: 32, Curve: CurveB}, d)

	d, err = ParseDevice("MCB", "40 A", "type-c")
	require.NoError(t, err)
	require.Equal(t, Device{Type: MCB, Rating: 40, Curve: CurveC}, d)

	_, err = ParseDevice("fuse", "32", "B")
	require.ErrorIs(t, err, ErrUnknownDeviceType)
	_, err = ParseDevice("MCB", "33", "B")
	require.ErrorIs(t, err, ErrNonStandardRating)
	_, err = ParseDevice("MCB", "32", "Z")
	require.ErrorIs(t, err, ErrUnknownCurve)
}

func TestStandardRatingsIsACopy(t *testing.T) {
	ratings := StandardRatings()
	ratings[0] = 1
	require.Equal(t, 6, StandardRatings()[0])
	require.False(t, IsStandardRating(1))
}
