package thermostat

import "fmt"

// DriftParams configure ambient drift.
type DriftParams struct {
	// OutdoorTemp is the temperature the room drifts toward, in whole
	// degrees Celsius.
	OutdoorTemp int
	// Period is the number of ticks between drift steps.
	Period int
}

func (p DriftParams) Validate() error {
	if p.Period <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDriftPeriod, p.Period)
	}
	return nil
}

// DriftSimulator nudges the measured temperature one degree toward the
// outdoor temperature every Period ticks. It writes the field directly, the
// way a sensor behind the thermostat's back would; the hosting service
// reconciles after each move so a drift that lands on the target settles
// the machine.
type DriftSimulator struct {
	params DriftParams
	ticks  int
}

func NewDriftSimulator(p DriftParams) (*DriftSimulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &DriftSimulator{params: p}, nil
}

// Apply counts one tick and, when the period elapses, moves the measured
// temperature one degree toward the outdoor temperature. It reports whether
// the temperature moved; a room already at outdoor temperature stays put.
// Apply is not safe for concurrent use; the hosting service calls it under
// its own lock.
func (d *DriftSimulator) Apply(s *State) bool {
	d.ticks++
	if d.ticks%d.params.Period != 0 {
		return false
	}
	switch {
	case s.CurrentTemp < d.params.OutdoorTemp:
		s.CurrentTemp++
	case s.CurrentTemp > d.params.OutdoorTemp:
		s.CurrentTemp--
	default:
		return false
	}
	return true
}
