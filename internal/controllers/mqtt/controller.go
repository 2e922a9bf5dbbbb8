package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/thermostep/internal/ports"
	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainState     bool
	PublishInterval time.Duration

	Username string
	Password string
}

type Controller struct {
	svc ports.ThermostatService
	cfg Config
	lg  *slog.Logger

	client mqtt.Client
}

func New(svc ports.ThermostatService, cfg Config, lg *slog.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "thermostep/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "thermostep-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		lg:  lg,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		c.lg.Info("mqtt connected", "broker", c.cfg.BrokerURL)
		// Subscribe to all set commands under BaseTopic.
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.lg.Error("mqtt subscribe failed", "topic", topic, "error", err)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.lg.Warn("mqtt connection lost", "error", err)
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish state on interval, and only when changed.
	// State is a comparable value, so change detection is a plain compare.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	var last thermostat.State
	first := true

	// publish immediately once
	c.publishState()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := c.svc.Get()
			if first || cur != last {
				c.publishState()
				last = cur
				first = false
			}
		}
	}
}

func (c *Controller) publishState() {
	s := c.svc.Get()
	dto := stateDTO{
		CurrentTemp: s.CurrentTemp,
		TargetTemp:  s.TargetTemp,
		Mode:        s.Mode.String(),
		FanSpeed:    s.FanSpeed.String(),
		Delta:       s.Delta(),
	}
	b, _ := json.Marshal(dto)
	c.client.Publish(c.topic("state"), c.cfg.QoS, c.cfg.RetainState, b)
}

type stateDTO struct {
	CurrentTemp int    `json:"current_temp"`
	TargetTemp  int    `json:"target_temp"`
	Mode        string `json:"mode"`
	FanSpeed    string `json:"fan_speed"`
	Delta       int    `json:"delta"`
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := c.cfg.BaseTopic + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	payload := msg.Payload()

	// Dispatch by field. A request the device cannot honor is dropped by the
	// device itself; the next state publish shows whether it took effect.
	switch field {
	case "target_temp":
		v, err := decodeValueStrict[int](payload)
		if err != nil {
			c.lg.Debug("mqtt command dropped", "field", field, "error", err)
			return
		}
		c.svc.SetTarget(v)
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
