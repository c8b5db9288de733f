package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSetpointOutOfRange = errors.New("setpoint out of range")
	ErrUnknownZone        = errors.New("unknown zone")
	ErrSettingOutOfRange  = errors.New("setting out of range")
	ErrUnknownSetting     = errors.New("unknown setting")
)

type settingRange struct {
	min, max float64
}

var settingRanges = map[string]settingRange{
	KeyHysteresis:          {0.1, 5},
	KeyPumpStartDelay:      {0, 300},
	KeyPumpStopDelay:       {0, 600},
	KeyErrorDisableMinutes: {1, 60},
}

func DefaultSettings() Settings {
	return Settings{
		Hysteresis:        0.5,
		PumpStartDelay:    5 * time.Second,
		PumpStopDelay:     30 * time.Second,
		ErrorDisableDelay: 5 * time.Minute,
	}
}

func ValidateZoneID(id int) error {
	if id < 1 || id > NumZones {
		return fmt.Errorf("zone %d: %w", id, ErrUnknownZone)
	}
	return nil
}

func ValidateSetpoint(v float64) error {
	if v < SetpointMin || v > SetpointMax {
		return fmt.Errorf("%.1f not in [%.0f, %.0f]: %w", v, SetpointMin, SetpointMax, ErrSetpointOutOfRange)
	}
	return nil
}

// ValidateSetting checks a global setting or a zone setpoint by its
// persistence key.
func ValidateSetting(key string, v float64) error {
	for id := 1; id <= NumZones; id++ {
		if key == SetpointKey(id) {
			return ValidateSetpoint(v)
		}
	}
	r, ok := settingRanges[key]
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	if v < r.min || v > r.max {
		return fmt.Errorf("%s=%g not in [%g, %g]: %w", key, v, r.min, r.max, ErrSettingOutOfRange)
	}
	return nil
}

// Values returns the settings keyed the way they are persisted.
func (s Settings) Values() map[string]float64 {
	return map[string]float64{
		KeyHysteresis:          s.Hysteresis,
		KeyPumpStartDelay:      s.PumpStartDelay.Seconds(),
		KeyPumpStopDelay:       s.PumpStopDelay.Seconds(),
		KeyErrorDisableMinutes: s.ErrorDisableDelay.Minutes(),
	}
}

// Apply sets one persisted key on s. Unknown keys are reported.
func (s *Settings) Apply(key string, v float64) error {
	if err := ValidateSetting(key, v); err != nil {
		return err
	}
	switch key {
	case KeyHysteresis:
		s.Hysteresis = v
	case KeyPumpStartDelay:
		s.PumpStartDelay = seconds(v)
	case KeyPumpStopDelay:
		s.PumpStopDelay = seconds(v)
	case KeyErrorDisableMinutes:
		s.ErrorDisableDelay = time.Duration(v * float64(time.Minute))
	default:
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
