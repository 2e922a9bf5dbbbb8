package ports

import "github.com/Agrid-Dev/thermostep/internal/thermostat"

// ThermostatService is the control-plane port used by controllers
// (HTTP/MQTT/Modbus). Mutations return nothing; a request the device cannot
// honor leaves the state as it was, and callers compare Get snapshots to
// tell the difference.
type ThermostatService interface {
	Get() thermostat.State
	SetTarget(v int)
	Tick()
	Reconcile()
}
