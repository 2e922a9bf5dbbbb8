package testutil

import "github.com/Agrid-Dev/thermostep/internal/thermostat"

// FakeThermostatService is a reusable fake implementing ports.ThermostatService.
// Put ONLY what multiple test packages need here.
//
// Mutations run the real State transitions so controller tests observe the
// device's actual accept/ignore behavior; the Called/Arg fields only record
// that the controller forwarded the request.
type FakeThermostatService struct {
	S thermostat.State

	SetTargetCalled bool
	SetTargetArg    int

	TickCalled bool
	TickCount  int

	ReconcileCalled bool
}

func NewFakeThermostatService() *FakeThermostatService {
	return &FakeThermostatService{S: thermostat.NewState()}
}

func (f *FakeThermostatService) Get() thermostat.State { return f.S }

func (f *FakeThermostatService) SetTarget(v int) {
	f.SetTargetCalled = true
	f.SetTargetArg = v
	f.S.SetTarget(v)
}

func (f *FakeThermostatService) Tick() {
	f.TickCalled = true
	f.TickCount++
	f.S.Step()
}

func (f *FakeThermostatService) Reconcile() {
	f.ReconcileCalled = true
	f.S.Reconcile()
}
