package thermostat

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewValidatesEnums(t *testing.T) {
	if _, err := New(NewState()); err != nil {
		t.Fatalf("New returned error for a valid state: %v", err)
	}

	_, err := New(State{Mode: Mode(7)})
	assertErrorIs(t, err, ErrInvalidMode)

	_, err = New(State{FanSpeed: FanSpeed(7)})
	assertErrorIs(t, err, ErrInvalidFanSpeed)
}

func TestServiceRoundTrip(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	assertState(t, th.Get(), 20, 22, ModeIdle, FanLow)

	th.SetTarget(26)
	assertState(t, th.Get(), 20, 26, ModeHeating, FanHigh)

	th.AdvanceHeating()
	assertState(t, th.Get(), 21, 26, ModeHeating, FanMedium)

	th.Init()
	assertEqual(t, th.Get(), NewState())
}

func TestServiceRejectionLeavesSnapshotUnchanged(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	before := th.Get()
	th.SetTarget(55)
	assertEqual(t, th.Get(), before)

	th.Reconcile()
	th.AdvanceCooling()
	assertEqual(t, th.Get(), before)
}

func TestTickStepsTowardTarget(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	th.SetTarget(24)
	assertState(t, th.Get(), 20, 24, ModeHeating, FanHigh)

	th.Tick()
	assertState(t, th.Get(), 21, 24, ModeHeating, FanMedium)

	for i := 0; i < 3; i++ {
		th.Tick()
	}
	assertState(t, th.Get(), 24, 24, ModeIdle, FanLow)

	th.Tick()
	assertState(t, th.Get(), 24, 24, ModeIdle, FanLow)
}

func TestTickDriftPullsIdleMachineTowardOutdoors(t *testing.T) {
	th, err := New(State{CurrentTemp: 22, TargetTemp: 22})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := th.EnableDrift(DriftParams{OutdoorTemp: 10, Period: 2}); err != nil {
		t.Fatalf("EnableDrift returned error: %v", err)
	}

	th.Tick()
	assertState(t, th.Get(), 22, 22, ModeIdle, FanLow)

	th.Tick()
	assertState(t, th.Get(), 21, 22, ModeIdle, FanLow)

	// The idle machine does not chase the drift; only a new setpoint
	// engages heating again.
	th.Tick()
	assertState(t, th.Get(), 21, 22, ModeIdle, FanLow)

	th.Tick()
	assertState(t, th.Get(), 20, 22, ModeIdle, FanLow)
}

func TestTickReconcilesWhenDriftLandsOnTarget(t *testing.T) {
	th, err := New(State{CurrentTemp: 20, TargetTemp: 22, Mode: ModeHeating, FanSpeed: FanHigh})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := th.EnableDrift(DriftParams{OutdoorTemp: 30, Period: 1}); err != nil {
		t.Fatalf("EnableDrift returned error: %v", err)
	}

	// The heating step moves 20 to 21, the drift move lands on 22, and the
	// reconcile after the drift settles the run in the same tick.
	th.Tick()
	assertState(t, th.Get(), 22, 22, ModeIdle, FanLow)

	th.Tick()
	assertState(t, th.Get(), 23, 22, ModeIdle, FanLow)

	th.Tick()
	assertState(t, th.Get(), 24, 22, ModeIdle, FanLow)
}

func TestEnableDriftRejectsBadPeriod(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	assertErrorIs(t, th.EnableDrift(DriftParams{OutdoorTemp: 10}), ErrInvalidDriftPeriod)
}

func TestConcurrentAccess(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				th.SetTarget(MinTargetTemp + (n+j)%15)
				th.Tick()
				_ = th.Get()
			}
		}(i)
	}
	wg.Wait()

	st := th.Get()
	if st.TargetTemp < MinTargetTemp || st.TargetTemp > MaxTargetTemp {
		t.Fatalf("target %d escaped the window", st.TargetTemp)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("state invalid after concurrent use: %v", err)
	}
}

func TestRunManualModeWaitsForContext(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- th.Run(ctx, 0) }()

	cancel()
	select {
	case err := <-done:
		assertErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assertEqual(t, th.Get(), NewState())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	th, err := New(NewState())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	th.SetTarget(23)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- th.Run(ctx, time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for th.Get().Delta() != 0 {
		select {
		case <-deadline:
			t.Fatalf("thermostat did not settle: %+v", th.Get())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	assertErrorIs(t, <-done, context.Canceled)
	assertState(t, th.Get(), 23, 23, ModeIdle, FanLow)
}
