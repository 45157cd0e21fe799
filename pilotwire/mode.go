// Package pilotwire implements the EnOcean D2-01-0C "Pilot Wire" heating
// actuator profile: the telegram codec, the mapping between wire-level
// modes and user-facing presets, the per-device control state machine and
// the inbound telegram dispatcher. Everything here is pure computation and
// in-memory state; telegram transmission and reception belong to the
// transport (see the enocean package).
package pilotwire

import "fmt"

// Mode is the wire-level pilot wire mode as defined by the D2-01-0C EEP.
// Values outside 0-5 are never constructed by this package, but any value
// is masked to its low nibble before being placed on the wire.
type Mode byte

const (
	ModeOff             Mode = 0
	ModeComfort         Mode = 1
	ModeEco             Mode = 2
	ModeFrostProtection Mode = 3
	ModeComfortMinus1   Mode = 4
	ModeComfortMinus2   Mode = 5
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeComfort:
		return "comfort"
	case ModeEco:
		return "eco"
	case ModeFrostProtection:
		return "frost_protection"
	case ModeComfortMinus1:
		return "comfort_minus_1"
	case ModeComfortMinus2:
		return "comfort_minus_2"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(m))
	}
}

// Preset is a user-facing heating preset. Off is not a preset: it lives on
// the separate heat/off axis, so that turning the heater back on restores
// the previously selected preset.
type Preset string

const (
	PresetComfort         Preset = "comfort"
	PresetEco             Preset = "eco"
	PresetFrostProtection Preset = "frost_protection"
	PresetComfortMinus1   Preset = "comfort_minus_1"
	PresetComfortMinus2   Preset = "comfort_minus_2"
)

// Presets lists the supported presets in display order.
var Presets = []Preset{
	PresetComfort,
	PresetEco,
	PresetFrostProtection,
	PresetComfortMinus1,
	PresetComfortMinus2,
}

var presetToMode = map[Preset]Mode{
	PresetComfort:         ModeComfort,
	PresetEco:             ModeEco,
	PresetFrostProtection: ModeFrostProtection,
	PresetComfortMinus1:   ModeComfortMinus1,
	PresetComfortMinus2:   ModeComfortMinus2,
}

var modeToPreset = map[Mode]Preset{
	ModeComfort:         PresetComfort,
	ModeEco:             PresetEco,
	ModeFrostProtection: PresetFrostProtection,
	ModeComfortMinus1:   PresetComfortMinus1,
	ModeComfortMinus2:   PresetComfortMinus2,
}

// PresetToMode returns the wire mode for a preset. The bool reports whether
// the preset is one of the five recognized values.
func PresetToMode(p Preset) (Mode, bool) {
	m, ok := presetToMode[p]
	return m, ok
}

// ModeToPreset returns the preset for a wire mode. Mode 0 (off) and
// out-of-range modes have no preset.
func ModeToPreset(m Mode) (Preset, bool) {
	p, ok := modeToPreset[m]
	return p, ok
}

// ParsePreset validates a preset name received from an external interface.
func ParsePreset(s string) (Preset, error) {
	p := Preset(s)
	if _, ok := presetToMode[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPreset, s)
	}
	return p, nil
}

// Action is the derived HVAC activity classification.
type Action string

const (
	ActionOff     Action = "off"
	ActionIdle    Action = "idle"
	ActionHeating Action = "heating"
)

// ClassifyAction derives the HVAC action from the heating intent and the
// wire mode. Frost protection counts as idle: the actuator is powered but
// deliberately not actively heating.
func ClassifyAction(heating bool, m Mode) Action {
	if !heating || m == ModeOff {
		return ActionOff
	}
	if m == ModeFrostProtection {
		return ActionIdle
	}
	return ActionHeating
}
