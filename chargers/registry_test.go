package chargers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/evcert/electrical"
)

func TestDefaultRegistryLoadsBuiltinCatalogue(t *testing.T) {
	reg := Default()
	require.Greater(t, reg.Len(), 10)

	spec, ok := reg.Get("myenergi-zappi-2-7kw-tethered")
	require.True(t, ok)
	require.Equal(t, "myenergi", spec.Make)
	require.Equal(t, SocketType2, spec.SocketType)
	require.Equal(t, Tethered, spec.Connection)
	require.True(t, spec.RCDIntegral)

	mode, ok := spec.PrimaryMode()
	require.True(t, ok)
	require.Equal(t, Mode{PowerKW: 7.4, Phases: electrical.SinglePhase}, mode)
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := Default()
	spec, ok := reg.Get("andersen-a3")
	require.True(t, ok)
	spec.Modes[0].PowerKW = 99
	spec.Make = "tampered"

	again, ok := reg.Get("andersen-a3")
	require.True(t, ok)
	require.Equal(t, 7.4, again.Modes[0].PowerKW)
	require.Equal(t, "Andersen", again.Make)

	all := reg.All()
	all[0].Modes[0].PowerKW = 0
	first, _ := reg.Get(reg.IDs()[0])
	require.NotZero(t, first.Modes[0].PowerKW)
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Default().Get("nope")
	require.False(t, ok)
	_, err := Default().Lookup("nope")
	require.ErrorIs(t, err, ErrUnknownCharger)
}

func TestPhasesAreDistinct(t *testing.T) {
	spec, ok := Default().Get("wallbox-pulsar-plus-22kw")
	require.True(t, ok)
	require.Equal(t, []electrical.Phases{electrical.ThreePhase}, spec.Phases())

	spec, ok = Default().Get("tesla-wall-connector-gen3")
	require.True(t, ok)
	require.Equal(t, []electrical.Phases{electrical.SinglePhase, electrical.ThreePhase}, spec.Phases())
}

func TestByMakeAndMakes(t *testing.T) {
	reg := Default()
	ohme := reg.ByMake(" ohme ")
	require.Len(t, ohme, 2)
	require.Contains(t, reg.Makes(), "Wallbox")
}

func TestNewRegistryValidates(t *testing.T) {
	good := Spec{ID: "x", Make: "M", Model: "m", Modes: []Mode{{PowerKW: 7, Phases: 1}}, SocketType: SocketType2, Connection: Socketed}

	_, err := NewRegistry(good, good)
	require.ErrorContains(t, err, "duplicate")

	bad := good
	bad.Modes = []Mode{{PowerKW: 7, Phases: 2}}
	_, err = NewRegistry(bad)
	require.ErrorIs(t, err, electrical.ErrInvalidPhaseConfiguration)

	bad = good
	bad.SocketType = "type9"
	_, err = NewRegistry(bad)
	require.Error(t, err)

	bad = good
	bad.Modes = nil
	_, err = NewRegistry(bad)
	require.Error(t, err)
}

func TestWithExtendsRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`chargers:
  - id: local-unit
    make: Local
    model: Unit 7
    modes:
      - { power_kw: 7.2, phases: 1 }
    socket_type: type2
    connection: socketed
    rcd_integral: false
`), 0o600))

	extra, err := LoadCatalogueFile(path)
	require.NoError(t, err)
	reg, err := Default().With(extra...)
	require.NoError(t, err)
	require.Equal(t, Default().Len()+1, reg.Len())
	_, ok := reg.Get("local-unit")
	require.True(t, ok)
	_, ok = Default().Get("local-unit")
	require.False(t, ok)

	_, err = Default().With(Default().All()[0])
	require.Error(t, err)
}

func TestLoadCatalogueRejectsUnknownFields(t *testing.T) {
	_, err := LoadCatalogue(strings.NewReader("chargers:\n  - id: a\n    wattage: 7\n"))
	require.Error(t, err)

	specs, err := LoadCatalogue(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, specs)
}
