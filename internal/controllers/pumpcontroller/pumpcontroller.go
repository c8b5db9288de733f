package pumpcontroller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
	"github.com/thatsimonsguy/radiant-controller/internal/timer"
)

const (
	DefaultStartDelay = 5 * time.Second
	DefaultStopDelay  = 30 * time.Second
)

// Aggregator ORs zone demand into one circulation pump command with
// start/stop debounce so the pump never short-cycles on demand flicker.
type Aggregator struct {
	Demand  bool
	RelayOn bool

	startTimer timer.Elapsed
	stopTimer  timer.Elapsed
}

// ZoneDemand is the demand contributed by the zone arena: only enabled zones
// that call for heat count.
func ZoneDemand(zones []model.Zone) bool {
	for _, z := range zones {
		if z.CallingHeat && !z.Disabled {
			return true
		}
	}
	return false
}

// AnyValveOpen reports whether at least one zone has a confirmed flow path.
func AnyValveOpen(zones []model.Zone) bool {
	for _, z := range zones {
		if z.ValveOpen {
			return true
		}
	}
	return false
}

// Update advances the debounce timers by dt and returns true when the relay
// command changed.
func (a *Aggregator) Update(demand, anyValveOpen bool, dt, startDelay, stopDelay time.Duration) bool {
	a.Demand = demand

	if demand {
		a.stopTimer.Reset()
		a.startTimer.Run(dt)
	} else {
		a.startTimer.Reset()
		a.stopTimer.Run(dt)
	}

	if !a.RelayOn {
		if demand && a.startTimer.Reached(startDelay) {
			if !anyValveOpen {
				log.Debug().
					Dur("demand_for", a.startTimer.Elapsed()).
					Msg("Pump start held, no zone valve confirmed open")
				return false
			}
			a.RelayOn = true
			log.Info().
				Dur("demand_for", a.startTimer.Elapsed()).
				Msg("Starting circulation pump")
			return true
		}
		return false
	}

	if !demand && a.stopTimer.Reached(stopDelay) {
		a.RelayOn = false
		log.Info().
			Dur("idle_for", a.stopTimer.Elapsed()).
			Msg("Stopping circulation pump")
		return true
	}
	return false
}

// ForceOff drops the relay immediately, used on shutdown and restart.
func (a *Aggregator) ForceOff() {
	a.RelayOn = false
	a.startTimer.Reset()
	a.stopTimer.Reset()
}
