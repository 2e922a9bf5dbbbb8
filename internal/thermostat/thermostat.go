package thermostat

import (
	"context"
	"sync"
	"time"
)

// Thermostat hosts a State behind a lock so several transport controllers
// can share one device. Get returns a copy; transitions run under the write
// lock, so a caller never observes a half-applied step.
type Thermostat struct {
	mu    sync.RWMutex
	state State
	drift *DriftSimulator
}

// New returns a Thermostat hosting the given initial state. The enum fields
// must hold known values; temperatures are accepted as given.
func New(initial State) (*Thermostat, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Thermostat{state: initial}, nil
}

// EnableDrift installs an ambient drift simulator that runs after the
// control step of every Tick.
func (t *Thermostat) EnableDrift(p DriftParams) error {
	sim, err := NewDriftSimulator(p)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.drift = sim
	t.mu.Unlock()
	return nil
}

// Get returns a copy of the current state.
func (t *Thermostat) Get() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Init resets the device to its power-on state.
func (t *Thermostat) Init() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Init()
}

// SetTarget requests a new target temperature. Acceptance follows
// State.SetTarget: a rejected request changes nothing, and callers detect
// acceptance by comparing snapshots taken before and after.
func (t *Thermostat) SetTarget(v int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.SetTarget(v)
}

// AdvanceHeating runs one heating step.
func (t *Thermostat) AdvanceHeating() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.AdvanceHeating()
}

// AdvanceCooling runs one cooling step.
func (t *Thermostat) AdvanceCooling() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.AdvanceCooling()
}

// Reconcile clears stale mode and fan flags once measured and target
// temperatures agree.
func (t *Thermostat) Reconcile() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Reconcile()
}

// Tick runs one control step and then any installed drift. A drift move is
// an external write to the measured temperature, so Tick reconciles right
// after it; a drift that lands on the target settles the machine instead of
// overshooting on later ticks.
func (t *Thermostat) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Step()
	if t.drift != nil && t.drift.Apply(&t.state) {
		t.state.Reconcile()
	}
}

// Run steps the device on a fixed interval until ctx is done. A zero or
// negative interval disables the internal clock; the device then moves only
// on explicit Tick calls from a controller, and Run blocks until ctx ends.
func (t *Thermostat) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Tick()
		}
	}
}
