// Package telemetry streams thermostat state transitions to Kafka so
// fleet-side consumers can follow convergence without polling devices.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Agrid-Dev/thermostep/internal/ports"
	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

type Config struct {
	DeviceID string
	Brokers  []string
	Topic    string

	// PollInterval is how often the device is sampled for a changed state.
	PollInterval time.Duration
}

// Event is one observed transition of a device.
type Event struct {
	DeviceID    string    `json:"device_id"`
	CurrentTemp int       `json:"current_temp"`
	TargetTemp  int       `json:"target_temp"`
	Mode        string    `json:"mode"`
	FanSpeed    string    `json:"fan_speed"`
	Delta       int       `json:"delta"`
	At          time.Time `json:"at"`
}

// messageWriter is the slice of kafka.Writer the publisher uses; tests swap
// in a recorder.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	svc ports.ThermostatService
	cfg Config
	w   messageWriter
	lg  *slog.Logger
}

func New(svc ports.ThermostatService, cfg Config, lg *slog.Logger) (*Publisher, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("telemetry: DeviceID is required")
	}
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}
	if cfg.Topic == "" {
		cfg.Topic = "thermostep.state"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if lg == nil {
		lg = slog.Default()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Publisher{svc: svc, cfg: cfg, w: w, lg: lg}, nil
}

// Run samples the device and publishes an event whenever the state changed
// since the last published sample. The first sample always goes out so
// consumers get a baseline. Publish failures are logged and the sample is
// retried on the next tick, so no transition is skipped.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var last thermostat.State
	first := true

	for {
		select {
		case <-ctx.Done():
			if err := p.w.Close(); err != nil {
				p.lg.Warn("telemetry writer close", "error", err)
			}
			return ctx.Err()

		case <-ticker.C:
			cur := p.svc.Get()
			if !first && cur == last {
				continue
			}
			if err := p.publish(ctx, cur); err != nil {
				p.lg.Warn("telemetry publish failed", "topic", p.cfg.Topic, "error", err)
				continue
			}
			last = cur
			first = false
		}
	}
}

func (p *Publisher) publish(ctx context.Context, st thermostat.State) error {
	ev := Event{
		DeviceID:    p.cfg.DeviceID,
		CurrentTemp: st.CurrentTemp,
		TargetTemp:  st.TargetTemp,
		Mode:        st.Mode.String(),
		FanSpeed:    st.FanSpeed.String(),
		Delta:       st.Delta(),
		At:          time.Now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// The device id keys the message so one device's events stay ordered
	// within a partition.
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.cfg.DeviceID),
		Value: b,
		Time:  ev.At,
	})
}
