package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

func TestEnvKeyTransform_TopLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DEVICE_ID", "device_id"},
		{"ADDR", "addr"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvKeyTransform_Controllers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CONTROLLERS_HTTP_ADDR", "controllers.http.addr"},
		{"CONTROLLERS_MQTT_PUBLISH_INTERVAL", "controllers.mqtt.publish_interval"},
		{"CONTROLLERS_MODBUS_UNIT_ID", "controllers.modbus.unit_id"},
		{"CONTROLLERS_HTTP", "controllers_http"},   // not enough parts -> fallback
		{"CONTROLLERS__ADDR", "controllers..addr"}, // edge case
		{"controllers_HTTP_addr", "controllers.http.addr"},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvKeyTransform_Sections(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"THERMOSTAT_TARGET_TEMP", "thermostat.target_temp"},
		{"THERMOSTAT_CURRENT_TEMP", "thermostat.current_temp"},
		{"TICK_INTERVAL", "tick.interval"},
		{"DRIFT_OUTDOOR_TEMP", "drift.outdoor_temp"},
		{"DRIFT_PERIOD", "drift.period"},
		{"TELEMETRY_POLL_INTERVAL", "telemetry.poll_interval"},
		{"THERMOSTAT", "thermostat"}, // not enough parts -> passthrough
		{"DRIFT", "drift"},           // not enough parts -> passthrough
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DeviceID != "default" {
		t.Fatalf("expected device_id=default, got %q", cfg.DeviceID)
	}
	if !cfg.Controllers.HTTP.Enabled || cfg.Controllers.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected http defaults: %+v", cfg.Controllers.HTTP)
	}
	if cfg.Controllers.Modbus.UnitID != 1 {
		t.Fatalf("expected modbus unit_id=1, got %d", cfg.Controllers.Modbus.UnitID)
	}
	if cfg.Tick.Interval != time.Second {
		t.Fatalf("expected tick interval 1s, got %v", cfg.Tick.Interval)
	}
	if cfg.Telemetry.Topic != "thermostep.state" {
		t.Fatalf("expected default telemetry topic, got %q", cfg.Telemetry.Topic)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `device_id: room42
controllers:
  http:
    addr: ":9090"
  mqtt:
    enabled: true
    broker_url: tcp://broker:1883
thermostat:
  target_temp: 26
tick:
  interval: 250ms
drift:
  enabled: true
  outdoor_temp: 5
  period: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DeviceID != "room42" {
		t.Fatalf("expected device_id=room42, got %q", cfg.DeviceID)
	}
	// File overrides merge over defaults without clearing them.
	if !cfg.Controllers.HTTP.Enabled {
		t.Fatal("expected http to stay enabled by default")
	}
	if cfg.Controllers.HTTP.Addr != ":9090" {
		t.Fatalf("expected http addr :9090, got %q", cfg.Controllers.HTTP.Addr)
	}
	if !cfg.Controllers.MQTT.Enabled || cfg.Controllers.MQTT.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("unexpected mqtt config: %+v", cfg.Controllers.MQTT)
	}
	if cfg.Thermostat.TargetTemp == nil || *cfg.Thermostat.TargetTemp != 26 {
		t.Fatalf("expected thermostat target override 26, got %v", cfg.Thermostat.TargetTemp)
	}
	if cfg.Tick.Interval != 250*time.Millisecond {
		t.Fatalf("expected tick interval 250ms, got %v", cfg.Tick.Interval)
	}
	if !cfg.Drift.Enabled || cfg.Drift.OutdoorTemp != 5 || cfg.Drift.Period != 3 {
		t.Fatalf("unexpected drift config: %+v", cfg.Drift)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DeviceID != "default" {
		t.Fatalf("expected defaults for a missing file, got %q", cfg.DeviceID)
	}
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("device_id = \"x\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("THERMOSTEP_DEVICE_ID", "room7")
	t.Setenv("THERMOSTEP_CONTROLLERS_HTTP_ADDR", ":7070")
	t.Setenv("THERMOSTEP_THERMOSTAT_TARGET_TEMP", "28")
	t.Setenv("THERMOSTEP_TICK_INTERVAL", "2s")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DeviceID != "room7" {
		t.Fatalf("expected device_id=room7, got %q", cfg.DeviceID)
	}
	if cfg.Controllers.HTTP.Addr != ":7070" {
		t.Fatalf("expected http addr :7070, got %q", cfg.Controllers.HTTP.Addr)
	}
	if cfg.Thermostat.TargetTemp == nil || *cfg.Thermostat.TargetTemp != 28 {
		t.Fatalf("expected thermostat target 28, got %v", cfg.Thermostat.TargetTemp)
	}
	if cfg.Tick.Interval != 2*time.Second {
		t.Fatalf("expected tick interval 2s, got %v", cfg.Tick.Interval)
	}
}

func TestLoadConfigPortShortcut(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Controllers.HTTP.Addr != ":9999" {
		t.Fatalf("expected PORT shortcut :9999, got %q", cfg.Controllers.HTTP.Addr)
	}

	// An explicit addr beats PORT.
	t.Setenv("THERMOSTEP_CONTROLLERS_HTTP_ADDR", ":7070")
	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Controllers.HTTP.Addr != ":7070" {
		t.Fatalf("expected explicit addr to win, got %q", cfg.Controllers.HTTP.Addr)
	}
}

func TestConfigState(t *testing.T) {
	ptr := func(v int) *int { return &v }
	str := func(v string) *string { return &v }

	t.Run("defaults", func(t *testing.T) {
		var cfg Config
		st, err := cfg.State()
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if st != thermostat.NewState() {
			t.Fatalf("expected power-on state, got %+v", st)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		var cfg Config
		cfg.Thermostat.CurrentTemp = ptr(25)
		cfg.Thermostat.TargetTemp = ptr(18)
		cfg.Thermostat.Mode = str("cooling")
		cfg.Thermostat.FanSpeed = str("high")

		st, err := cfg.State()
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		want := thermostat.State{
			CurrentTemp: 25,
			TargetTemp:  18,
			Mode:        thermostat.ModeCooling,
			FanSpeed:    thermostat.FanHigh,
		}
		if st != want {
			t.Fatalf("state = %+v, want %+v", st, want)
		}
	})

	t.Run("target outside window", func(t *testing.T) {
		var cfg Config
		cfg.Thermostat.TargetTemp = ptr(12)
		_, err := cfg.State()
		if !errors.Is(err, thermostat.ErrInvalidTargetTemp) {
			t.Fatalf("expected ErrInvalidTargetTemp, got %v", err)
		}
	})

	t.Run("bad mode", func(t *testing.T) {
		var cfg Config
		cfg.Thermostat.Mode = str("defrost")
		if _, err := cfg.State(); err == nil {
			t.Fatal("expected error for unknown mode")
		}
	})
}
