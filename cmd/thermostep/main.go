package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/thermostep/cmd/app"
	httpctrl "github.com/Agrid-Dev/thermostep/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/thermostep/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/thermostep/internal/controllers/mqtt"
	"github.com/Agrid-Dev/thermostep/internal/device"
	"github.com/Agrid-Dev/thermostep/internal/telemetry"
	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

func main() {
	var (
		configPath  string
		printConfig bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.BoolVar(&printConfig, "print-config", false, "print the resolved configuration and exit")
	flag.Parse()

	lg := initLogger()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		lg.Error("load config", "error", err)
		os.Exit(1)
	}

	if printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			lg.Error("dump config", "error", err)
			os.Exit(1)
		}
		return
	}

	initial, err := cfg.State()
	if err != nil {
		lg.Error("initial state", "error", err)
		os.Exit(1)
	}

	th, err := thermostat.New(initial)
	if err != nil {
		lg.Error("thermostat", "error", err)
		os.Exit(1)
	}
	if cfg.Drift.Enabled {
		if err := th.EnableDrift(thermostat.DriftParams{
			OutdoorTemp: cfg.Drift.OutdoorTemp,
			Period:      cfg.Drift.Period,
		}); err != nil {
			lg.Error("drift", "error", err)
			os.Exit(1)
		}
	}

	dev := device.New(cfg.DeviceID, th)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return th.Run(ctx, cfg.Tick.Interval) })
	if cfg.Tick.Interval > 0 {
		lg.Info("tick loop started", "interval", cfg.Tick.Interval)
	} else {
		lg.Info("internal clock disabled; device moves on explicit ticks")
	}

	if cfg.Controllers.HTTP.Enabled {
		srv := httpctrl.New(dev.T, cfg.Controllers.HTTP.Addr, dev.ID)
		g.Go(func() error { return srv.Run(ctx) })
		lg.Info("http controller started", "addr", cfg.Controllers.HTTP.Addr)
	}

	if cfg.Controllers.MQTT.Enabled {
		ctrl, err := mqttctrl.New(dev.T, mqttctrl.Config{
			DeviceID:        dev.ID,
			BrokerURL:       cfg.Controllers.MQTT.BrokerURL,
			ClientID:        cfg.Controllers.MQTT.ClientID,
			BaseTopic:       cfg.Controllers.MQTT.BaseTopic,
			QoS:             cfg.Controllers.MQTT.QoS,
			RetainState:     cfg.Controllers.MQTT.RetainState,
			PublishInterval: cfg.Controllers.MQTT.PublishInterval,
			Username:        cfg.Controllers.MQTT.Username,
			Password:        cfg.Controllers.MQTT.Password,
		}, lg)
		if err != nil {
			lg.Error("mqtt controller", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return ctrl.Run(ctx) })
		lg.Info("mqtt controller started", "broker", cfg.Controllers.MQTT.BrokerURL)
	}

	if cfg.Controllers.Modbus.Enabled {
		ctrl, err := modbusctrl.New(dev.T, modbusctrl.Config{
			DeviceID: dev.ID,
			Addr:     cfg.Controllers.Modbus.Addr,
			UnitID:   cfg.Controllers.Modbus.UnitID,
		})
		if err != nil {
			lg.Error("modbus controller", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return ctrl.Run(ctx) })
		lg.Info("modbus controller started", "addr", cfg.Controllers.Modbus.Addr)
	}

	if cfg.Telemetry.Enabled {
		pub, err := telemetry.New(dev.T, telemetry.Config{
			DeviceID:     dev.ID,
			Brokers:      cfg.Telemetry.Brokers,
			Topic:        cfg.Telemetry.Topic,
			PollInterval: cfg.Telemetry.PollInterval,
		}, lg)
		if err != nil {
			lg.Error("telemetry", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return pub.Run(ctx) })
		lg.Info("telemetry publisher started", "topic", cfg.Telemetry.Topic)
	}

	lg.Info("thermostep running", "device_id", dev.ID)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("exited", "error", err)
		os.Exit(1)
	}
	lg.Info("shutdown complete")
}

func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	lg := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(lg)
	return lg
}
