package thermostat

import (
	"fmt"
	"strings"
)

// Mode is a heating/cooling mode as exposed to remote clients. Only Off and Heat
// are implemented; Cool and Auto requests arrive as ModeUnsupported and behave
// exactly like Off.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeHeat
	ModeUnsupported
)

// Characteristic values of the HomeKit heating/cooling state.
const (
	characteristicOff  = 0
	characteristicHeat = 1
	characteristicCool = 2
	characteristicAuto = 3
)

// ModeFromCharacteristic maps a TargetHeatingCoolingState value onto a Mode.
func ModeFromCharacteristic(v int) Mode {
	switch v {
	case characteristicOff:
		return ModeOff
	case characteristicHeat:
		return ModeHeat
	default:
		return ModeUnsupported
	}
}

// Characteristic returns the HomeKit value for m. ModeUnsupported reports Off.
func (m Mode) Characteristic() int {
	if m == ModeHeat {
		return characteristicHeat
	}
	return characteristicOff
}

func (m Mode) String() string {
	switch m {
	case ModeHeat:
		return "heat"
	case ModeUnsupported:
		return "unsupported"
	default:
		return "off"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "off", "":
		*m = ModeOff
	case "heat":
		*m = ModeHeat
	case "cool", "auto", "unsupported":
		*m = ModeUnsupported
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Status is what the panel shows next to the temperatures.
type Status uint8

const (
	StatusOff Status = iota
	StatusHeating
	StatusIdle
)

func (s Status) String() string {
	switch s {
	case StatusHeating:
		return "heating"
	case StatusIdle:
		return "idle"
	default:
		return "off"
	}
}

// State is the view of the thermostat shared with remote clients.
type State struct {
	CurrentTemperature float64
	Humidity           float64
	TargetTemperature  float64
	TargetMode         Mode
	CurrentMode        Mode
}

// RelayAction is the relay part of a Decision.
type RelayAction uint8

const (
	RelayHold RelayAction = iota
	RelayOn
	RelayOff
)

// Decision is the outcome of Reconcile.
type Decision struct {
	Relay  RelayAction
	Status Status
}

// Reconcile decides the relay and panel state from the remote target, the
// remote target mode and the current reading. At exactly the target the relay
// is held in whatever state it is in.
func Reconcile(target float64, mode Mode, current float64) Decision {
	if mode != ModeHeat {
		return Decision{Relay: RelayOff, Status: StatusOff}
	}

	switch {
	case current < target:
		return Decision{Relay: RelayOn, Status: StatusHeating}
	case current > target:
		return Decision{Relay: RelayOff, Status: StatusIdle}
	default:
		return Decision{Relay: RelayHold}
	}
}

// Resolve applies d to the current relay state and returns the relay state to
// apply and the status to show.
func (d Decision) Resolve(relayOn bool) (bool, Status) {
	switch d.Relay {
	case RelayOn:
		return true, d.Status
	case RelayOff:
		return false, d.Status
	}

	if relayOn {
		return true, StatusHeating
	}
	return false, StatusIdle
}

// Limits bound the target temperature.
type Limits struct {
	Min, Max, Step float64
}

// Clamp returns t bounded to [Min, Max].
func (l Limits) Clamp(t float64) float64 {
	if t < l.Min {
		return l.Min
	}
	if t > l.Max {
		return l.Max
	}
	return t
}

// Button is one of the panel's target adjustment buttons.
type Button uint8

const (
	ButtonIncrease Button = iota
	ButtonDecrease
)

func (b Button) String() string {
	if b == ButtonDecrease {
		return "decrease"
	}
	return "increase"
}
