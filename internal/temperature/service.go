package temperature

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DS18B20 conversion range.
	MinValidC = -55.0
	MaxValidC = 125.0

	// MaxReadingAge is one failsafe scoring window. A zone's reading must be
	// refreshed at least this often before it counts as absent.
	MaxReadingAge = 30 * time.Second
)

type Reading struct {
	Temperature float64
	Timestamp   time.Time
	Valid       bool
}

// SensorReader performs a single conversion on a bus address.
type SensorReader interface {
	ReadTemperature(address string) (float64, error)
}

// Service polls every zone sensor in the background and latches the results.
// The control loop only ever reads latched values, so a conversion in progress
// shows up as the previous reading (or none), never as a wait.
type Service struct {
	bus          SensorReader
	sensors      map[int]string // zone ID -> bus address
	readings     map[int]Reading
	mutex        sync.RWMutex
	pollInterval time.Duration
	readDelay    time.Duration
	staleAfter   time.Duration
	now          func() time.Time
}

func NewService(bus SensorReader, sensors map[int]string, pollInterval time.Duration) *Service {
	return &Service{
		bus:          bus,
		sensors:      sensors,
		readings:     make(map[int]Reading),
		pollInterval: pollInterval,
		readDelay:    500 * time.Millisecond,
		staleAfter:   staleAfter(pollInterval),
		now:          time.Now,
	}
}

// staleAfter allows at least one scoring window, and three poll periods when
// polling is slower than that.
func staleAfter(pollInterval time.Duration) time.Duration {
	if age := 3 * pollInterval; age > MaxReadingAge {
		return age
	}
	return MaxReadingAge
}

func (s *Service) Start(ctx context.Context) {
	go func() {
		log.Info().
			Int("sensors", len(s.sensors)).
			Dur("interval", s.pollInterval).
			Msg("Starting zone temperature poller")

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			s.readAllSensors(ctx)
			select {
			case <-ctx.Done():
				log.Info().Msg("Temperature poller stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Service) readAllSensors(ctx context.Context) {
	first := true
	for zone, addr := range s.sensors {
		if addr == "" {
			continue
		}
		if !first && s.readDelay > 0 {
			// give the shared bus a breather between conversions
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.readDelay):
			}
		}
		first = false

		temp, err := s.bus.ReadTemperature(addr)
		s.record(zone, addr, temp, err)
	}
}

func (s *Service) record(zone int, addr string, temp float64, err error) {
	reading := Reading{Temperature: temp, Timestamp: s.now(), Valid: err == nil}

	switch {
	case err != nil:
		log.Warn().Err(err).Int("zone", zone).Str("sensor", addr).Msg("Zone sensor read failed")
	case temp < MinValidC || temp > MaxValidC:
		reading.Valid = false
		log.Warn().Int("zone", zone).Str("sensor", addr).Float64("temp", temp).Msg("Zone sensor reading out of range")
	default:
		log.Debug().Int("zone", zone).Str("sensor", addr).Float64("temp", temp).Msg("Zone temperature read")
	}

	s.mutex.Lock()
	s.readings[zone] = reading
	s.mutex.Unlock()
}

// Read returns the latched reading for a zone. Missing, invalid and stale
// readings all report false.
func (s *Service) Read(zone int) (float64, bool) {
	s.mutex.RLock()
	reading, exists := s.readings[zone]
	s.mutex.RUnlock()

	if !exists || !reading.Valid {
		return 0, false
	}
	if s.now().Sub(reading.Timestamp) > s.staleAfter {
		return 0, false
	}
	return reading.Temperature, true
}
