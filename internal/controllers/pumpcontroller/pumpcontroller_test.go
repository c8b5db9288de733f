package pumpcontroller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

const tick = time.Second

func step(a *Aggregator, demand, valve bool, ticks int) (changes int) {
	for i := 0; i < ticks; i++ {
		if a.Update(demand, valve, tick, DefaultStartDelay, DefaultStopDelay) {
			changes++
		}
	}
	return changes
}

func TestAggregator_StartDebounce(t *testing.T) {
	a := &Aggregator{}

	step(a, true, true, 4)
	assert.False(t, a.RelayOn, "demand held for start_delay-1 must not start the pump")

	step(a, false, true, 1)
	step(a, true, true, 4)
	assert.False(t, a.RelayOn, "withdrawn demand restarts the start window")

	step(a, true, true, 1)
	assert.True(t, a.RelayOn)
}

func TestAggregator_NeverStartsWithoutConfirmedValve(t *testing.T) {
	a := &Aggregator{}

	step(a, true, false, 120)
	assert.False(t, a.RelayOn)
	assert.True(t, a.Demand)

	assert.Equal(t, 1, step(a, true, true, 1), "pump starts as soon as a valve confirms after the delay")
	assert.True(t, a.RelayOn)
}

func TestAggregator_StopDebounceNoGlitch(t *testing.T) {
	a := &Aggregator{}
	step(a, true, true, 5)
	assert.True(t, a.RelayOn)

	for cycle := 0; cycle < 5; cycle++ {
		changes := step(a, false, true, 29)
		changes += step(a, true, true, 3)
		assert.Zero(t, changes, "cycle %d glitched the pump relay", cycle)
		assert.True(t, a.RelayOn)
	}

	step(a, false, true, 29)
	assert.True(t, a.RelayOn)
	assert.Equal(t, 1, step(a, false, true, 1))
	assert.False(t, a.RelayOn)
}

func TestAggregator_StaysOnWhenValvesCloseWithDemand(t *testing.T) {
	a := &Aggregator{}
	step(a, true, true, 5)
	step(a, true, false, 60)
	assert.True(t, a.RelayOn)
}

func TestAggregator_ForceOff(t *testing.T) {
	a := &Aggregator{}
	step(a, true, true, 5)
	a.ForceOff()
	assert.False(t, a.RelayOn)
	step(a, true, true, 4)
	assert.False(t, a.RelayOn)
}

func TestZoneDemand(t *testing.T) {
	zones := []model.Zone{
		{ID: 1},
		{ID: 2, CallingHeat: true, Disabled: true},
	}
	assert.False(t, ZoneDemand(zones), "disabled zones do not contribute demand")

	zones = append(zones, model.Zone{ID: 3, CallingHeat: true})
	assert.True(t, ZoneDemand(zones))
}

func TestAnyValveOpen(t *testing.T) {
	zones := []model.Zone{{ID: 1}, {ID: 2}}
	assert.False(t, AnyValveOpen(zones))
	zones[1].ValveOpen = true
	assert.True(t, AnyValveOpen(zones))
}
