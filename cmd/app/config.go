package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

const envPrefix = "THERMOSTEP_"

type Config struct {
	DeviceID string `koanf:"device_id" yaml:"device_id"`

	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http" yaml:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt" yaml:"mqtt"`
		Modbus ModbusConfig `koanf:"modbus" yaml:"modbus"`
	} `koanf:"controllers" yaml:"controllers"`

	Thermostat ThermostatConfig `koanf:"thermostat" yaml:"thermostat"`
	Tick       TickConfig       `koanf:"tick" yaml:"tick"`
	Drift      DriftConfig      `koanf:"drift" yaml:"drift"`
	Telemetry  TelemetryConfig  `koanf:"telemetry" yaml:"telemetry"`
}

// ThermostatConfig overrides parts of the power-on state. Pointer fields
// distinguish "not set" from an explicit zero.
type ThermostatConfig struct {
	CurrentTemp *int    `koanf:"current_temp" yaml:"current_temp"`
	TargetTemp  *int    `koanf:"target_temp" yaml:"target_temp"`
	Mode        *string `koanf:"mode" yaml:"mode"`           // "idle" | "heating" | "cooling"
	FanSpeed    *string `koanf:"fan_speed" yaml:"fan_speed"` // "low" | "medium" | "high"
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	BrokerURL       string        `koanf:"broker_url" yaml:"broker_url"`
	ClientID        string        `koanf:"client_id" yaml:"client_id"`
	BaseTopic       string        `koanf:"base_topic" yaml:"base_topic"`
	QoS             byte          `koanf:"qos" yaml:"qos"`
	RetainState     bool          `koanf:"retain_state" yaml:"retain_state"`
	PublishInterval time.Duration `koanf:"publish_interval" yaml:"publish_interval"`
	Username        string        `koanf:"username" yaml:"username"`
	Password        string        `koanf:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" yaml:"unit_id"`
}

type TickConfig struct {
	// Interval between automatic control steps. Zero disables the internal
	// clock; the device then moves only on explicit tick commands.
	Interval time.Duration `koanf:"interval" yaml:"interval"`
}

type DriftConfig struct {
	Enabled     bool `koanf:"enabled" yaml:"enabled"`
	OutdoorTemp int  `koanf:"outdoor_temp" yaml:"outdoor_temp"`
	Period      int  `koanf:"period" yaml:"period"`
}

type TelemetryConfig struct {
	Enabled      bool          `koanf:"enabled" yaml:"enabled"`
	Brokers      []string      `koanf:"brokers" yaml:"brokers"`
	Topic        string        `koanf:"topic" yaml:"topic"`
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.DeviceID = "default"
	cfg.Controllers.HTTP.Enabled = true
	cfg.Controllers.HTTP.Addr = ":8080"
	cfg.Controllers.MQTT.PublishInterval = time.Second
	cfg.Controllers.Modbus.Addr = "127.0.0.1:1502"
	cfg.Controllers.Modbus.UnitID = 1
	cfg.Tick.Interval = time.Second
	cfg.Drift.OutdoorTemp = 10
	cfg.Drift.Period = 5
	cfg.Telemetry.Brokers = []string{"localhost:9092"}
	cfg.Telemetry.Topic = "thermostep.state"
	cfg.Telemetry.PollInterval = time.Second
	return cfg
}

// LoadConfig layers defaults, an optional YAML/JSON file and THERMOSTEP_*
// environment variables, later sources winning. A missing file is not an
// error; the defaults and environment still apply.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			parser, perr := parserFor(path)
			if perr != nil {
				return Config{}, perr
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyPortShortcut(&cfg)
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

// envKeyTransform maps CONTROLLERS_HTTP_ADDR to controllers.http.addr and
// THERMOSTAT_TARGET_TEMP to thermostat.target_temp. The section name is
// split off the front; the remainder keeps its underscores. Keys that do
// not match a known section pass through lowercased.
func envKeyTransform(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(k, "controllers_"); ok {
		name, tail, found := strings.Cut(rest, "_")
		if !found {
			return k
		}
		return "controllers." + name + "." + tail
	}
	for _, section := range []string{"thermostat", "tick", "drift", "telemetry"} {
		if rest, ok := strings.CutPrefix(k, section+"_"); ok {
			return section + "." + rest
		}
	}
	return k
}

// applyPortShortcut honors the container convention: PORT sets the HTTP
// listen port unless an explicit THERMOSTEP_CONTROLLERS_HTTP_ADDR was given.
func applyPortShortcut(cfg *Config) {
	if os.Getenv(envPrefix+"CONTROLLERS_HTTP_ADDR") != "" {
		return
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Controllers.HTTP.Addr = ":" + v
	}
}

// State builds the initial thermostat state: power-on values overlaid with
// any thermostat.* overrides. The target override must sit inside the
// request window; the measured temperature is free.
func (c Config) State() (thermostat.State, error) {
	st := thermostat.NewState()
	if c.Thermostat.CurrentTemp != nil {
		st.CurrentTemp = *c.Thermostat.CurrentTemp
	}
	if c.Thermostat.TargetTemp != nil {
		v := *c.Thermostat.TargetTemp
		if v < thermostat.MinTargetTemp || v > thermostat.MaxTargetTemp {
			return thermostat.State{}, fmt.Errorf("%w: %d", thermostat.ErrInvalidTargetTemp, v)
		}
		st.TargetTemp = v
	}
	if c.Thermostat.Mode != nil {
		m, err := thermostat.ParseMode(*c.Thermostat.Mode)
		if err != nil {
			return thermostat.State{}, err
		}
		st.Mode = m
	}
	if c.Thermostat.FanSpeed != nil {
		f, err := thermostat.ParseFanSpeed(*c.Thermostat.FanSpeed)
		if err != nil {
			return thermostat.State{}, err
		}
		st.FanSpeed = f
	}
	return st, nil
}

// Dump writes the resolved configuration as YAML.
func (c Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
