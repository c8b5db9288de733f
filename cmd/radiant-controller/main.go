package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/db"
	"github.com/thatsimonsguy/radiant-controller/internal/api"
	"github.com/thatsimonsguy/radiant-controller/internal/config"
	"github.com/thatsimonsguy/radiant-controller/internal/controller"
	"github.com/thatsimonsguy/radiant-controller/internal/controllers/scancontroller"
	"github.com/thatsimonsguy/radiant-controller/internal/datadog"
	"github.com/thatsimonsguy/radiant-controller/internal/gpio"
	"github.com/thatsimonsguy/radiant-controller/internal/logging"
	"github.com/thatsimonsguy/radiant-controller/internal/model"
	"github.com/thatsimonsguy/radiant-controller/internal/notifications"
	"github.com/thatsimonsguy/radiant-controller/internal/onewire"
	"github.com/thatsimonsguy/radiant-controller/internal/persist"
	"github.com/thatsimonsguy/radiant-controller/internal/telemetry"
	"github.com/thatsimonsguy/radiant-controller/internal/temperature"
	"github.com/thatsimonsguy/radiant-controller/system/shutdown"
)

const metricsInterval = 10 * time.Second

func main() {
	cfg := config.Load()
	logCloser := logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db", cfg.DBPath).
		Dur("tick", cfg.Tick()).
		Msg("Starting radiant controller")

	gpio.SetSafeMode(cfg.GPIO.SafeMode)
	log.Info().
		Bool("safe_mode", gpio.SafeMode()).
		Bool("simulate", cfg.GPIO.Simulate).
		Str("chip", cfg.GPIO.Chip).
		Msg("GPIO output mode")

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open settings database", nil, logCloser)
		return
	}
	if err := db.SeedDefaults(conn, seedValues(cfg)); err != nil {
		log.Warn().Err(err).Msg("Failed to seed default settings")
	}

	lines, err := openLines(cfg)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open GPIO lines", nil, conn, logCloser)
		return
	}
	relays := gpio.NewRelayDriver(lines, cfg.RelayLines())
	if err := relays.AllOff(); err != nil {
		shutdown.ShutdownWithError(err, "Refusing to start with relays in an unknown state", relays, lines, conn, logCloser)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers stop after the control loop returns.
	bg, cancelBg := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	valves := gpio.NewValveReader(lines, cfg.ValveLines(), time.Duration(cfg.GPIO.ValveDebounceMs)*time.Millisecond)
	valves.Start(bg)

	bus := onewire.NewBus(cfg.OneWire.DevicesPath)
	temps := temperature.NewService(bus, cfg.SensorAddresses(), time.Duration(cfg.OneWire.PollSeconds)*time.Second)
	temps.Start(bg)

	store := persist.New(persist.SQLBackend{DB: conn}, time.Duration(cfg.PersistDebounceMs)*time.Millisecond)
	workers.Add(1)
	go func() {
		defer workers.Done()
		store.Run(bg)
	}()

	deps := controller.Deps{
		Temperatures: temps,
		Valves:       valves,
		Relays:       relays,
		Store:        store,
		Scanner:      scancontroller.New(bus, cfg.OneWire.MaxScanDevices),
	}

	if ntfy := notifications.New(cfg.NtfyTopic); ntfy != nil {
		deps.Notifier = ntfy
	}

	if cfg.Datadog.Enabled {
		metrics, err := datadog.InitMetrics(cfg.Datadog.AgentAddr, cfg.Datadog.Namespace, cfg.Datadog.Tags, metricsInterval)
		if err != nil {
			log.Warn().Err(err).Msg("Datadog metrics disabled")
		} else {
			deps.Observers = append(deps.Observers, metrics)
		}
	}

	if cfg.MQTT.Broker != "" {
		sink, err := telemetry.NewPahoSink(telemetry.PahoOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT telemetry disabled")
		} else {
			publisher := telemetry.NewPublisher(sink, cfg.MQTT.Topic, time.Duration(cfg.MQTT.PublishSeconds)*time.Second)
			deps.Observers = append(deps.Observers, publisher)
			workers.Add(1)
			go func() {
				defer workers.Done()
				publisher.Run(bg)
			}()
		}
	}

	stopWorkers := func() {
		cancelBg()
		workers.Wait()
	}

	ctrl, err := controller.New(controllerConfig(cfg), deps)
	if err != nil {
		stopWorkers()
		shutdown.ShutdownWithError(err, "Failed to build controller", relays, lines, conn, logCloser)
		return
	}

	server := api.NewServer(ctrl, cfg.APIPort)
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("REST API server failed")
		}
	}()

	ticker := time.NewTicker(cfg.Tick())
	runErr := ctrl.Run(ctx, ticker.C)
	ticker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("REST API server did not stop cleanly")
	}
	cancel()
	stopWorkers()

	switch {
	case errors.Is(runErr, controller.ErrRestartRequested):
		shutdown.Restart(relays, lines, conn, logCloser)
	case runErr != nil:
		shutdown.ShutdownWithError(runErr, "Control loop failed", relays, lines, conn, logCloser)
	default:
		shutdown.Shutdown(relays, lines, conn, logCloser)
	}
}

func openLines(cfg config.Config) (gpio.Lines, error) {
	if cfg.GPIO.Simulate {
		log.Warn().Msg("GPIO simulation enabled, no hardware lines will be touched")
		return gpio.NewFakeLines(), nil
	}

	valveLines := make([]int, 0, len(cfg.Zones))
	for _, line := range cfg.ValveLines() {
		valveLines = append(valveLines, line)
	}
	sort.Ints(valveLines)

	chip, err := gpio.OpenChip(cfg.GPIO.Chip, cfg.RelayLines(), *cfg.GPIO.RelayActiveHigh, valveLines, *cfg.GPIO.ValveActiveLow)
	if err != nil {
		return nil, err
	}
	return chip, nil
}

// seedValues are the first-boot values for every persisted key. Later
// changes made through the API win over the config file.
func seedValues(cfg config.Config) map[string]float64 {
	values := cfg.Settings().Values()
	for _, z := range cfg.Zones {
		values[model.SetpointKey(z.ID)] = z.Setpoint
	}
	return values
}

func controllerConfig(cfg config.Config) controller.Config {
	cc := controller.Config{
		PumpRelayLine:   *cfg.Pump.RelayLine,
		Tick:            cfg.Tick(),
		HistoryInterval: time.Duration(cfg.HistoryIntervalSeconds) * time.Second,
		Defaults:        cfg.Settings(),
	}
	for _, z := range cfg.Zones {
		cc.Zones = append(cc.Zones, controller.ZoneConfig{
			ID:              z.ID,
			Label:           z.Label,
			SensorAddress:   z.Sensor,
			RelayLine:       *z.RelayLine,
			DefaultSetpoint: z.Setpoint,
		})
	}
	return cc
}
