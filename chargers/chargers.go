// Package chargers holds the read-only catalogue of charger specifications.
package chargers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/timzifer/evcert/electrical"
)

// ErrUnknownCharger is returned when an ID is not in the registry.
var ErrUnknownCharger = errors.New("unknown charger")

// SocketType is the vehicle connector standard.
type SocketType string

const (
	SocketType1    SocketType = "type1"
	SocketType2    SocketType = "type2"
	SocketCCS2     SocketType = "ccs2"
	SocketCHAdeMO  SocketType = "chademo"
	SocketCommando SocketType = "commando"
	SocketThreePin SocketType = "three_pin"
)

func (s SocketType) valid() bool {
	switch s {
	case SocketType1, SocketType2, SocketCCS2, SocketCHAdeMO, SocketCommando, SocketThreePin:
		return true
	}
	return false
}

// Connection is whether the charger has its own cable.
type Connection string

const (
	Tethered Connection = "tethered"
	Socketed Connection = "socketed"
)

// Mode is one supported power/phase combination.
type Mode struct {
	PowerKW float64           `yaml:"power_kw" json:"power_kw"`
	Phases  electrical.Phases `yaml:"phases" json:"phases"`
}

// Spec is a catalogue entry.
type Spec struct {
	ID          string     `yaml:"id" json:"id"`
	Make        string     `yaml:"make" json:"make"`
	Model       string     `yaml:"model" json:"model"`
	Modes       []Mode     `yaml:"modes" json:"modes"`
	SocketType  SocketType `yaml:"socket_type" json:"socket_type"`
	Connection  Connection `yaml:"connection" json:"connection"`
	RCDIntegral bool       `yaml:"rcd_integral" json:"rcd_integral"`
	Notes       string     `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// PrimaryMode returns the first listed mode, the one a form defaults to.
func (s *Spec) PrimaryMode() (Mode, bool) {
	if s == nil || len(s.Modes) == 0 {
		return Mode{}, false
	}
	return s.Modes[0], true
}

// Phases lists the distinct phase counts the charger supports.
func (s *Spec) Phases() []electrical.Phases {
	if s == nil {
		return nil
	}
	var out []electrical.Phases
	seen := make(map[electrical.Phases]struct{}, 2)
	for _, m := range s.Modes {
		if _, ok := seen[m.Phases]; ok {
			continue
		}
		seen[m.Phases] = struct{}{}
		out = append(out, m.Phases)
	}
	return out
}

func (s Spec) clone() Spec {
	s.Modes = append([]Mode(nil), s.Modes...)
	return s
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("charger id must not be empty")
	}
	if strings.TrimSpace(s.Make) == "" || strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("charger %s: make and model are required", s.ID)
	}
	if len(s.Modes) == 0 {
		return fmt.Errorf("charger %s: at least one mode is required", s.ID)
	}
	for i, m := range s.Modes {
		if err := m.Phases.Check(); err != nil {
			return fmt.Errorf("charger %s mode %d: %w", s.ID, i, err)
		}
		if m.PowerKW <= 0 {
			return fmt.Errorf("charger %s mode %d: power must be positive", s.ID, i)
		}
	}
	if !s.SocketType.valid() {
		return fmt.Errorf("charger %s: unknown socket type %q", s.ID, s.SocketType)
	}
	if s.Connection != Tethered && s.Connection != Socketed {
		return fmt.Errorf("charger %s: unknown connection %q", s.ID, s.Connection)
	}
	return nil
}
