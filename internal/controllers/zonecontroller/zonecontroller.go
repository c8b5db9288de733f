package zonecontroller

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

// ZoneInput is everything the thermostat needs for one zone on one tick.
type ZoneInput struct {
	ZoneID      int
	Temperature float64
	Valid       bool
	Setpoint    float64
	Hysteresis  float64
	Calling     bool // previous calling_for_heat
}

// EvaluateDemand applies the deadband thermostat: heat turns on at or below
// setpoint-h/2, off at or above setpoint+h/2, and holds inside the band.
// A zone without a valid reading never calls for heat.
func EvaluateDemand(in ZoneInput) bool {
	if !in.Valid {
		if in.Calling {
			log.Warn().
				Int("zone", in.ZoneID).
				Msg("Sensor unavailable while calling for heat, forcing demand off")
		}
		return false
	}

	heatOn, heatOff := thresholds(in.Setpoint, in.Hysteresis)

	switch {
	case in.Temperature <= heatOn:
		return true
	case in.Temperature >= heatOff:
		return false
	default:
		return in.Calling
	}
}

func thresholds(setpoint, hysteresis float64) (float64, float64) {
	half := hysteresis / 2
	return setpoint - half, setpoint + half
}

// RelayCommand is the zone relay gate. A disabled zone is always off.
func RelayCommand(calling, disabled bool) bool {
	return calling && !disabled
}

// UpdateZone runs the thermostat for z in place and returns true when
// calling_for_heat changed.
func UpdateZone(z *model.Zone, hysteresis float64) bool {
	temp, ok := z.TemperatureOK()
	next := EvaluateDemand(ZoneInput{
		ZoneID:      z.ID,
		Temperature: temp,
		Valid:       ok,
		Setpoint:    z.Setpoint,
		Hysteresis:  hysteresis,
		Calling:     z.CallingHeat,
	})

	changed := next != z.CallingHeat
	if changed {
		heatOn, heatOff := thresholds(z.Setpoint, hysteresis)
		log.Info().
			Int("zone", z.ID).
			Float64("temp", temp).
			Bool("sensor_ok", ok).
			Float64("setpoint", z.Setpoint).
			Float64("heat_on_at", heatOn).
			Float64("heat_off_at", heatOff).
			Bool("calling_for_heat", next).
			Msg("Zone demand changed")
	}
	z.CallingHeat = next
	return changed
}
