package thermostat

import "fmt"

// Mode is an integer enum. The zero value is ModeIdle, the initial state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeHeating
	ModeCooling
)

func (m Mode) Valid() bool {
	return m == ModeIdle || m == ModeHeating || m == ModeCooling
}

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeHeating:
		return "heating"
	case ModeCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// ParseMode is used by the config layer; the state machine itself never
// consumes mode strings.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "idle":
		return ModeIdle, nil
	case "heating":
		return ModeHeating, nil
	case "cooling":
		return ModeCooling, nil
	default:
		return ModeIdle, fmt.Errorf("invalid mode: %q", s)
	}
}

// FanSpeed is an integer enum. The zero value is FanLow, the initial speed.
type FanSpeed int

const (
	FanLow FanSpeed = iota
	FanMedium
	FanHigh
)

func (f FanSpeed) Valid() bool {
	return f == FanLow || f == FanMedium || f == FanHigh
}

func (f FanSpeed) String() string {
	switch f {
	case FanLow:
		return "low"
	case FanMedium:
		return "medium"
	case FanHigh:
		return "high"
	default:
		return "unknown"
	}
}

func ParseFanSpeed(s string) (FanSpeed, error) {
	switch s {
	case "low":
		return FanLow, nil
	case "medium":
		return FanMedium, nil
	case "high":
		return FanHigh, nil
	default:
		return FanLow, fmt.Errorf("invalid fan speed: %q", s)
	}
}
