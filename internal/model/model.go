package model

import (
	"errors"
	"fmt"
	"time"
)

// Preset is one of the fixed target temperatures, in °C.
type Preset int

const (
	PresetTea  Preset = 70
	PresetMate Preset = 80
	PresetCafe Preset = 90
	PresetBoil Preset = 100
)

// Presets is the closed set of valid targets in cycle order.
var Presets = []Preset{PresetTea, PresetMate, PresetCafe, PresetBoil}

var ErrInvalidPreset = errors.New("invalid temperature preset")

func ParsePreset(celsius int) (Preset, error) {
	p := Preset(celsius)
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPreset, celsius)
	}
	return p, nil
}

func (p Preset) Valid() bool {
	for _, v := range Presets {
		if v == p {
			return true
		}
	}
	return false
}

// Next returns the following preset in cycle order, wrapping after the last.
// An invalid preset maps to the first one.
func (p Preset) Next() Preset {
	for i, v := range Presets {
		if v == p {
			return Presets[(i+1)%len(Presets)]
		}
	}
	return Presets[0]
}

func (p Preset) Name() string {
	switch p {
	case PresetTea:
		return "Té"
	case PresetMate:
		return "Mate"
	case PresetCafe:
		return "Café"
	case PresetBoil:
		return "Hervir"
	default:
		return fmt.Sprintf("%d", int(p))
	}
}

type ModeKind string

const (
	ModeIdle      ModeKind = "idle"
	ModeSelecting ModeKind = "selecting"
	ModeHeating   ModeKind = "heating"
)

// IdleName is what the display and the status API call the rest state.
const IdleName = "Reloj"

// DeviceMode is the controller state. Preset is meaningful only when Kind is
// ModeSelecting or ModeHeating.
type DeviceMode struct {
	Kind   ModeKind `json:"kind"`
	Preset Preset   `json:"preset,omitempty"`
}

func Idle() DeviceMode                 { return DeviceMode{Kind: ModeIdle} }
func Selecting(p Preset) DeviceMode    { return DeviceMode{Kind: ModeSelecting, Preset: p} }
func Heating(p Preset) DeviceMode      { return DeviceMode{Kind: ModeHeating, Preset: p} }
func (m DeviceMode) IsIdle() bool      { return m.Kind == ModeIdle }
func (m DeviceMode) IsSelecting() bool { return m.Kind == ModeSelecting }
func (m DeviceMode) IsHeating() bool   { return m.Kind == ModeHeating }

func (m DeviceMode) Name() string {
	if m.Kind == ModeIdle {
		return IdleName
	}
	return m.Preset.Name()
}

func (m DeviceMode) String() string {
	if m.Kind == ModeIdle {
		return string(m.Kind)
	}
	return fmt.Sprintf("%s(%d)", m.Kind, int(m.Preset))
}

type ButtonKind string

const (
	ShortPress ButtonKind = "short_press"
	LongPress  ButtonKind = "long_press"
)

// ButtonEvent is one classified press cycle. ReleasedAt is zero for a
// LongPress, which fires while the button is still held.
type ButtonEvent struct {
	Kind       ButtonKind
	PressedAt  time.Time
	ReleasedAt time.Time
}

type CommandKind string

const (
	CommandStartHeating  CommandKind = "start_heating"
	CommandStop          CommandKind = "stop"
	CommandAdvancePreset CommandKind = "advance_preset"
)

type Source string

const (
	SourceLocal    Source = "local"
	SourceRemote   Source = "remote"
	SourceFailsafe Source = "failsafe"
)

// Command is an intent submitted to the command queue. Seq is assigned by the
// queue on push and reflects arrival order.
type Command struct {
	ID       string      `json:"id"`
	Kind     CommandKind `json:"kind"`
	Preset   Preset      `json:"preset,omitempty"`
	Source   Source      `json:"source"`
	IssuedAt time.Time   `json:"issued_at"`
	Seq      uint64      `json:"seq"`
}

// Reading is a valid temperature sample. Failed reads are reported as a
// *SensorError instead.
type Reading struct {
	Celsius   float64   `json:"celsius"`
	Timestamp time.Time `json:"timestamp"`
}

type SensorError struct {
	Reason string
	At     time.Time
	Err    error
}

func (e *SensorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sensor error: %s: %v", e.Reason, e.Err)
	}
	return "sensor error: " + e.Reason
}

func (e *SensorError) Unwrap() error { return e.Err }

type EventType string

const (
	EventStartedHeating   EventType = "STARTED_HEATING"
	EventCompleted        EventType = "COMPLETED"
	EventStopped          EventType = "STOPPED"
	EventSelectionChanged EventType = "SELECTION_CHANGED"
	EventCommandIgnored   EventType = "COMMAND_IGNORED"
	EventDisplayRefresh   EventType = "DISPLAY_REFRESH"
	EventHeatingAnimation EventType = "HEATING_ANIMATION"
	EventSafetyCutoff     EventType = "SAFETY_CUTOFF"
	EventSensorFault      EventType = "SENSOR_FAULT"
	EventRelayFault       EventType = "RELAY_FAULT"
)

// Event is emitted by the controller towards presenters and other sinks.
type Event struct {
	ID          string     `json:"id"`
	Type        EventType  `json:"type"`
	At          time.Time  `json:"at"`
	Mode        DeviceMode `json:"mode"`
	Target      Preset     `json:"target,omitempty"`
	Temperature float64    `json:"temperature"`
	Source      Source     `json:"source,omitempty"`
	Frame       int        `json:"frame,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Periodic reports whether the event is a high-frequency presentation event
// that journal and network sinks skip.
func (e Event) Periodic() bool {
	return e.Type == EventDisplayRefresh || e.Type == EventHeatingAnimation
}

type GPIOPin struct {
	Number     int
	ActiveHigh bool
}
