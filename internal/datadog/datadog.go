package datadog

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

type gauger interface {
	Gauge(name string, value float64, tags []string, rate float64) error
}

// Metrics emits controller gauges to a DogStatsD agent. It observes every
// snapshot but only emits once per interval.
type Metrics struct {
	client   gauger
	interval time.Duration
	last     time.Time
}

func InitMetrics(addr, namespace string, tags []string, interval time.Duration) (*Metrics, error) {
	dogstatsd, err := statsd.New(addr)
	if err != nil {
		return nil, fmt.Errorf("create DogStatsD client: %w", err)
	}

	dogstatsd.Namespace = namespace
	dogstatsd.Tags = tags

	log.Info().
		Str("addr", addr).
		Str("namespace", namespace).
		Strs("tags", tags).
		Msg("Datadog metrics initialized")

	return &Metrics{client: dogstatsd, interval: interval}, nil
}

func (m *Metrics) Gauge(name string, value float64, tags ...string) {
	if err := m.client.Gauge(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
	}
}

func (m *Metrics) Observe(snap model.Snapshot) {
	if !m.last.IsZero() && snap.Timestamp.Sub(m.last) < m.interval {
		return
	}
	m.last = snap.Timestamp

	for _, z := range snap.Zones {
		tag := fmt.Sprintf("zone:%d", z.ID)
		if temp, ok := z.TemperatureOK(); ok {
			m.Gauge("zone.temperature", temp, "component:sensor", tag)
		}
		m.Gauge("zone.setpoint", z.Setpoint, tag)
		m.Gauge("zone.error_score", float64(z.ErrorScore), "component:failsafe", tag)
		m.Gauge("zone.relay", boolGauge(z.RelayOn), "component:relay", tag)
		m.Gauge("zone.valve_open", boolGauge(z.ValveOpen), "component:valve", tag)
		m.Gauge("zone.disabled", boolGauge(z.Disabled), "component:failsafe", tag)
	}

	m.Gauge("pump.demand", boolGauge(snap.Pump.Demand), "component:pump")
	m.Gauge("pump.relay", boolGauge(snap.Pump.RelayOn), "component:pump")
	m.Gauge("zones.active", float64(snap.ActiveZones))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
