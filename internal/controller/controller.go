// Package controller owns the zone arena and the pump and runs them on a
// single fixed-period control loop. Everything else talks to it through
// queued intents and read-only snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/controllers/failsafecontroller"
	"github.com/thatsimonsguy/radiant-controller/internal/controllers/pumpcontroller"
	"github.com/thatsimonsguy/radiant-controller/internal/controllers/zonecontroller"
	"github.com/thatsimonsguy/radiant-controller/internal/device"
	"github.com/thatsimonsguy/radiant-controller/internal/model"
	"github.com/thatsimonsguy/radiant-controller/internal/status"
	"github.com/thatsimonsguy/radiant-controller/internal/timer"
)

var ErrRestartRequested = errors.New("restart requested")

type TemperatureSource interface {
	Read(zone int) (float64, bool)
}

type ValveSource interface {
	Read(zone int) bool
}

type Store interface {
	Load(key string) (float64, bool)
	Save(key string, value float64)
}

type Scanner interface {
	Trigger() bool
	Poll() *model.ScanReport
	State() model.ScanState
	LastReport() *model.ScanReport
}

type Notifier interface {
	Send(title, message string) error
}

// Observer receives every published snapshot on the loop goroutine and must
// not block.
type Observer interface {
	Observe(snap model.Snapshot)
}

type ZoneConfig struct {
	ID              int
	Label           string
	SensorAddress   string
	RelayLine       int
	DefaultSetpoint float64
}

type Config struct {
	Zones           []ZoneConfig
	PumpRelayLine   int
	Tick            time.Duration
	HistoryInterval time.Duration
	Defaults        model.Settings
}

type Deps struct {
	Temperatures TemperatureSource
	Valves       ValveSource
	Relays       device.Setter
	Store        Store
	Scanner      Scanner
	Notifier     Notifier
	Observers    []Observer
}

type Controller struct {
	cfg  Config
	deps Deps

	zones    [model.NumZones]model.Zone
	monitors [model.NumZones]*failsafecontroller.Monitor
	outputs  [model.NumZones]*device.Output
	pump     pumpcontroller.Aggregator
	pumpOut  *device.Output
	settings model.Settings

	history      *status.History
	historyTimer timer.Interval

	intents          chan intent
	restartRequested bool
	now              func() time.Time

	snapMu   sync.RWMutex
	snapshot model.Snapshot
}

// New builds the controller, restores persisted setpoints and settings, and
// drives every relay OFF before the first tick.
func New(cfg Config, deps Deps) (*Controller, error) {
	if len(cfg.Zones) != model.NumZones {
		return nil, fmt.Errorf("expected %d zones, got %d", model.NumZones, len(cfg.Zones))
	}
	if cfg.Tick <= 0 {
		return nil, fmt.Errorf("tick period must be positive, got %s", cfg.Tick)
	}
	if cfg.HistoryInterval <= 0 {
		cfg.HistoryInterval = 30 * time.Second
	}

	c := &Controller{
		cfg:          cfg,
		deps:         deps,
		settings:     cfg.Defaults,
		history:      status.NewHistory(),
		historyTimer: timer.Interval{Period: cfg.HistoryInterval},
		intents:      make(chan intent, intentQueueSize),
		now:          time.Now,
	}

	for i, zc := range cfg.Zones {
		if err := model.ValidateZoneID(zc.ID); err != nil {
			return nil, err
		}
		if zc.ID != i+1 {
			return nil, fmt.Errorf("zone %d configured in position %d", zc.ID, i+1)
		}
		c.zones[i] = model.Zone{
			ID:       zc.ID,
			Label:    zc.Label,
			Setpoint: c.restoreSetpoint(zc),
			Sensor:   model.Sensor{Address: zc.SensorAddress},
		}
		c.monitors[i] = failsafecontroller.NewMonitor(zc.ID)
		c.outputs[i] = device.NewOutput(fmt.Sprintf("zone_%d_relay", zc.ID), zc.RelayLine, deps.Relays)
	}
	c.pumpOut = device.NewOutput("circulation_pump", cfg.PumpRelayLine, deps.Relays)
	c.restoreSettings()

	c.allOff()
	c.publish(c.now())
	return c, nil
}

func (c *Controller) restoreSetpoint(zc ZoneConfig) float64 {
	if c.deps.Store != nil {
		if v, ok := c.deps.Store.Load(model.SetpointKey(zc.ID)); ok {
			if err := model.ValidateSetpoint(v); err == nil {
				return v
			}
			log.Warn().Int("zone", zc.ID).Float64("setpoint", v).Msg("Ignoring persisted setpoint out of range")
		}
	}
	return zc.DefaultSetpoint
}

func (c *Controller) restoreSettings() {
	if c.deps.Store == nil {
		return
	}
	for key := range c.settings.Values() {
		v, ok := c.deps.Store.Load(key)
		if !ok {
			continue
		}
		if err := c.settings.Apply(key, v); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Ignoring persisted setting")
		}
	}
	log.Info().
		Float64("hysteresis", c.settings.Hysteresis).
		Dur("pump_start_delay", c.settings.PumpStartDelay).
		Dur("pump_stop_delay", c.settings.PumpStopDelay).
		Dur("error_disable_delay", c.settings.ErrorDisableDelay).
		Msg("Controller settings loaded")
}

// Run ticks the controller on every value received from ticks until ctx is
// cancelled or a restart is requested. Timers advance by the configured tick
// period, not by wall-clock deltas.
func (c *Controller) Run(ctx context.Context, ticks <-chan time.Time) error {
	log.Info().Dur("tick", c.cfg.Tick).Msg("Starting control loop")
	for {
		select {
		case <-ctx.Done():
			c.allOff()
			log.Info().Msg("Control loop stopped")
			return nil
		case <-ticks:
			c.Tick(c.cfg.Tick)
			if c.restartRequested {
				c.allOff()
				return ErrRestartRequested
			}
		}
	}
}

// Tick runs one control cycle of length dt.
func (c *Controller) Tick(dt time.Duration) {
	now := c.now()
	c.drainIntents()

	for i := range c.zones {
		c.tickZone(i, dt, now)
	}

	zones := c.zones[:]
	c.pump.Update(pumpcontroller.ZoneDemand(zones), pumpcontroller.AnyValveOpen(zones), dt,
		c.settings.PumpStartDelay, c.settings.PumpStopDelay)
	c.pumpOut.Command(c.pump.RelayOn, now)

	if c.deps.Scanner != nil {
		c.deps.Scanner.Poll()
	}

	if c.historyTimer.Advance(dt) > 0 {
		c.history.Record(zones, c.pump.RelayOn)
	}

	c.publish(now)
}

func (c *Controller) tickZone(i int, dt time.Duration, now time.Time) {
	z := &c.zones[i]
	m := c.monitors[i]

	temp, ok := c.deps.Temperatures.Read(z.ID)
	if ok {
		t := temp
		z.Temperature = &t
	} else {
		z.Temperature = nil
	}
	z.ValveOpen = c.deps.Valves.Read(z.ID)

	zonecontroller.UpdateZone(z, c.settings.Hysteresis)

	res := m.Update(failsafecontroller.Observation{
		RelayOn:     zonecontroller.RelayCommand(z.CallingHeat, m.Disabled),
		ValveOpen:   z.ValveOpen,
		Temperature: temp,
		Valid:       ok,
	}, dt, c.settings.ErrorDisableDelay)
	z.ErrorScore = m.Score
	z.Disabled = m.Disabled

	if res.NewlyDisabled {
		c.notify("Zone disabled",
			fmt.Sprintf("Zone %d (%s) disabled after its error score held at %d. Reset errors to re-enable.",
				z.ID, z.Label, z.ErrorScore))
	}

	z.RelayOn = zonecontroller.RelayCommand(z.CallingHeat, z.Disabled)
	c.outputs[i].Command(z.RelayOn, now)
	z.DisplayState = status.Classify(*z)
}

// allOff drops every relay and clears pump debounce state.
func (c *Controller) allOff() {
	now := c.now()
	c.pump.ForceOff()
	c.pumpOut.Command(false, now)
	for i := range c.zones {
		c.zones[i].RelayOn = false
		c.outputs[i].Command(false, now)
	}
}

func (c *Controller) notify(title, message string) {
	if c.deps.Notifier == nil {
		return
	}
	n := c.deps.Notifier
	go func() {
		if err := n.Send(title, message); err != nil {
			log.Warn().Err(err).Str("title", title).Msg("Failed to send notification")
		}
	}()
}

func (c *Controller) publish(now time.Time) {
	snap := model.Snapshot{
		Timestamp:         now,
		Zones:             c.zones,
		Pump:              model.Pump{Demand: c.pump.Demand, RelayOn: c.pump.RelayOn, History: c.history.Pump()},
		Hysteresis:        c.settings.Hysteresis,
		PumpStartDelaySec: c.settings.PumpStartDelay.Seconds(),
		PumpStopDelaySec:  c.settings.PumpStopDelay.Seconds(),
		ErrorDisableMin:   c.settings.ErrorDisableDelay.Minutes(),
		AnyValveOpen:      pumpcontroller.AnyValveOpen(c.zones[:]),
		ScanState:         model.ScanIdle,
	}
	for i := range snap.Zones {
		snap.Zones[i].History = c.history.Zone(snap.Zones[i].ID)
		if snap.Zones[i].RelayOn {
			snap.ActiveZones++
		}
	}
	if c.deps.Scanner != nil {
		snap.ScanState = c.deps.Scanner.State()
		snap.LastScan = c.deps.Scanner.LastReport()
	}

	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	for _, o := range c.deps.Observers {
		o.Observe(snap)
	}
}

// Snapshot returns the state published at the end of the last tick.
func (c *Controller) Snapshot() model.Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}
