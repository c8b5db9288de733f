package controller

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

const intentQueueSize = 64

var (
	ErrBusy            = errors.New("controller intent queue full")
	ErrScanUnavailable = errors.New("sensor scanner not configured")
)

type intentKind int

const (
	intentSetSetpoint intentKind = iota
	intentSetAllSetpoints
	intentSetSetting
	intentResetErrors
	intentTriggerScan
	intentRestart
)

func (k intentKind) String() string {
	switch k {
	case intentSetSetpoint:
		return "set_setpoint"
	case intentSetAllSetpoints:
		return "set_all_setpoints"
	case intentSetSetting:
		return "set_setting"
	case intentResetErrors:
		return "reset_errors"
	case intentTriggerScan:
		return "trigger_scan"
	case intentRestart:
		return "restart"
	}
	return "unknown"
}

// intent is a mutation requested from outside the loop, applied at the start
// of the next tick.
type intent struct {
	id    string
	kind  intentKind
	zone  int
	key   string
	value float64
}

// enqueue never blocks. The returned ID appears in the log line written when
// the intent is applied.
func (c *Controller) enqueue(in intent) (string, error) {
	in.id = uuid.NewString()
	select {
	case c.intents <- in:
		log.Debug().Str("intent_id", in.id).Str("intent", in.kind.String()).Msg("Intent queued")
		return in.id, nil
	default:
		return "", ErrBusy
	}
}

// SetSetpoint validates and queues a setpoint change for one zone.
func (c *Controller) SetSetpoint(zone int, value float64) (string, error) {
	if err := model.ValidateZoneID(zone); err != nil {
		return "", err
	}
	if err := model.ValidateSetpoint(value); err != nil {
		return "", err
	}
	return c.enqueue(intent{kind: intentSetSetpoint, zone: zone, value: value})
}

// SetAllSetpoints queues the same setpoint for every zone.
func (c *Controller) SetAllSetpoints(value float64) (string, error) {
	if err := model.ValidateSetpoint(value); err != nil {
		return "", err
	}
	return c.enqueue(intent{kind: intentSetAllSetpoints, value: value})
}

// SetSetting queues a change to a global setting by its persisted key.
func (c *Controller) SetSetting(key string, value float64) (string, error) {
	var candidate model.Settings
	if err := candidate.Apply(key, value); err != nil {
		return "", err
	}
	return c.enqueue(intent{kind: intentSetSetting, key: key, value: value})
}

func (c *Controller) SetHysteresis(v float64) (string, error) {
	return c.SetSetting(model.KeyHysteresis, v)
}

func (c *Controller) SetPumpStartDelay(seconds float64) (string, error) {
	return c.SetSetting(model.KeyPumpStartDelay, seconds)
}

func (c *Controller) SetPumpStopDelay(seconds float64) (string, error) {
	return c.SetSetting(model.KeyPumpStopDelay, seconds)
}

func (c *Controller) SetErrorDisableDelay(minutes float64) (string, error) {
	return c.SetSetting(model.KeyErrorDisableMinutes, minutes)
}

// ResetAllErrors clears error scores and disable latches on every zone.
func (c *Controller) ResetAllErrors() (string, error) {
	return c.enqueue(intent{kind: intentResetErrors})
}

func (c *Controller) TriggerScan() (string, error) {
	if c.deps.Scanner == nil {
		return "", ErrScanUnavailable
	}
	return c.enqueue(intent{kind: intentTriggerScan})
}

// Restart makes Run return ErrRestartRequested after the next tick.
func (c *Controller) Restart() (string, error) {
	return c.enqueue(intent{kind: intentRestart})
}

func (c *Controller) drainIntents() {
	for {
		select {
		case in := <-c.intents:
			c.apply(in)
		default:
			return
		}
	}
}

func (c *Controller) apply(in intent) {
	logger := log.With().Str("intent_id", in.id).Str("intent", in.kind.String()).Logger()

	switch in.kind {
	case intentSetSetpoint:
		c.setSetpoint(in.zone, in.value)
		logger.Info().Int("zone", in.zone).Float64("setpoint", in.value).Msg("Zone setpoint changed")

	case intentSetAllSetpoints:
		for i := range c.zones {
			c.setSetpoint(c.zones[i].ID, in.value)
		}
		logger.Info().Float64("setpoint", in.value).Msg("All zone setpoints changed")

	case intentSetSetting:
		if err := c.settings.Apply(in.key, in.value); err != nil {
			logger.Error().Err(err).Str("key", in.key).Msg("Rejected setting change")
			return
		}
		c.save(in.key, in.value)
		logger.Info().Str("key", in.key).Float64("value", in.value).Msg("Setting changed")

	case intentResetErrors:
		c.resetErrors()
		logger.Info().Msg("Zone errors reset")

	case intentTriggerScan:
		if !c.deps.Scanner.Trigger() {
			logger.Warn().Msg("Scan trigger ignored")
		}

	case intentRestart:
		c.restartRequested = true
		logger.Warn().Msg("Restart requested")
	}
}

func (c *Controller) setSetpoint(zone int, value float64) {
	c.zones[zone-1].Setpoint = value
	c.save(model.SetpointKey(zone), value)
}

func (c *Controller) save(key string, value float64) {
	if c.deps.Store != nil {
		c.deps.Store.Save(key, value)
	}
}

// resetErrors re-arms every zone. Relay and pump state are re-evaluated by
// the rest of the tick that applied the reset.
func (c *Controller) resetErrors() {
	var reenabled []int
	for i := range c.zones {
		if c.monitors[i].Disabled {
			reenabled = append(reenabled, c.zones[i].ID)
		}
		c.monitors[i].Reset()
		c.zones[i].ErrorScore = 0
		c.zones[i].Disabled = false
	}

	if len(reenabled) > 0 {
		c.notify("Zone errors reset", fmt.Sprintf("Re-enabled zones %v", reenabled))
	}
}
