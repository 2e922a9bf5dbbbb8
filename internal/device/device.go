package device

import (
	"github.com/google/uuid"

	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

// Device pairs a thermostat with the identity controllers expose in MQTT
// topics, telemetry events and the HTTP state document.
type Device struct {
	ID string
	T  *thermostat.Thermostat
}

// New builds a Device. An empty id gets a generated UUID so every running
// instance stays addressable.
func New(id string, t *thermostat.Thermostat) *Device {
	if id == "" {
		id = uuid.NewString()
	}
	return &Device{ID: id, T: t}
}
