// Package thermostat implements a fixed-step thermostat state machine and a
// concurrency-safe service hosting it for the transport controllers.
package thermostat

import "fmt"

// Bounds accepted by SetTarget, in whole degrees Celsius.
const (
	MinTargetTemp = 16
	MaxTargetTemp = 30
)

// Values applied by Init.
const (
	DefaultCurrentTemp = 20
	DefaultTargetTemp  = 22
)

// State holds the complete thermostat state. It is a plain value: methods
// mutate the receiver in place and report nothing, and two States compare
// with ==. Every transition checks its own precondition and leaves the
// State untouched when the precondition does not hold.
type State struct {
	CurrentTemp int
	TargetTemp  int
	Mode        Mode
	FanSpeed    FanSpeed
}

// NewState returns a State reset to its power-on values.
func NewState() State {
	var s State
	s.Init()
	return s
}

// Init resets the thermostat: 20 degrees measured, 22 requested, idle with
// the fan on low.
func (s *State) Init() {
	s.CurrentTemp = DefaultCurrentTemp
	s.TargetTemp = DefaultTargetTemp
	s.Mode = ModeIdle
	s.FanSpeed = FanLow
}

// Validate reports whether the enum fields hold known values. Temperatures
// are not range-checked here; only SetTarget enforces the request window.
func (s State) Validate() error {
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(s.Mode))
	}
	if !s.FanSpeed.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidFanSpeed, int(s.FanSpeed))
	}
	return nil
}

// SetTarget requests a new target temperature and engages the machine.
// Requests outside [MinTargetTemp, MaxTargetTemp] and requests equal to the
// current target are ignored. An accepted request above the measured
// temperature starts heating, one below it starts cooling, both with the fan
// on high; a request equal to the measured temperature settles on idle with
// the fan on low. Setting a new target mid-run re-applies the high fan speed.
func (s *State) SetTarget(v int) {
	if v < MinTargetTemp || v > MaxTargetTemp || v == s.TargetTemp {
		return
	}
	s.TargetTemp = v
	switch {
	case v > s.CurrentTemp:
		s.Mode = ModeHeating
		s.FanSpeed = FanHigh
	case v < s.CurrentTemp:
		s.Mode = ModeCooling
		s.FanSpeed = FanHigh
	default:
		s.Mode = ModeIdle
		s.FanSpeed = FanLow
	}
}

// AdvanceHeating moves the measured temperature one degree toward a warmer
// target. It does nothing unless the thermostat is heating and below target.
// The first step drops the fan from high to medium and it stays there while
// a gap remains; the step that closes the gap lands on idle with the fan on
// low. Only SetTarget starts a heating run.
func (s *State) AdvanceHeating() {
	if s.Mode != ModeHeating || s.CurrentTemp >= s.TargetTemp {
		return
	}
	s.CurrentTemp++
	if s.CurrentTemp == s.TargetTemp {
		s.Mode = ModeIdle
		s.FanSpeed = FanLow
	} else {
		s.FanSpeed = FanMedium
	}
}

// AdvanceCooling moves the measured temperature one degree toward a cooler
// target. It does nothing unless the thermostat is cooling and above target.
// The first step drops the fan from high to medium and it stays there while
// a gap remains; the step that closes the gap lands on idle with the fan on
// low. Only SetTarget starts a cooling run.
func (s *State) AdvanceCooling() {
	if s.Mode != ModeCooling || s.CurrentTemp <= s.TargetTemp {
		return
	}
	s.CurrentTemp--
	if s.CurrentTemp == s.TargetTemp {
		s.Mode = ModeIdle
		s.FanSpeed = FanLow
	} else {
		s.FanSpeed = FanMedium
	}
}

// Reconcile forces idle and a low fan when measured and target temperatures
// agree. It is the recovery path for mode or fan flags left stale by an
// external write to the fields; while a gap is open it does nothing.
func (s *State) Reconcile() {
	if s.CurrentTemp != s.TargetTemp {
		return
	}
	s.Mode = ModeIdle
	s.FanSpeed = FanLow
}

// Step advances the machine by one tick, running the advance matching the
// active mode; when idle it reconciles. One call moves at most one degree,
// so an engaged run over a gap of n degrees settles after n steps.
func (s *State) Step() {
	switch s.Mode {
	case ModeHeating:
		s.AdvanceHeating()
	case ModeCooling:
		s.AdvanceCooling()
	default:
		s.Reconcile()
	}
}

// Delta is the signed distance left to travel, target minus measured.
func (s State) Delta() int {
	return s.TargetTemp - s.CurrentTemp
}
