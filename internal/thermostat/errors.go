package thermostat

import "errors"

// Sentinel errors returned by constructors and configuration validation.
// State transitions themselves never fail: an operation whose precondition
// does not hold is a silent no-op.
var (
	ErrInvalidMode        = errors.New("invalid mode")
	ErrInvalidFanSpeed    = errors.New("invalid fan speed")
	ErrInvalidTargetTemp  = errors.New("target temperature out of range")
	ErrInvalidDriftPeriod = errors.New("invalid drift period")
)
