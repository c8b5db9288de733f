package scancontroller

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
	"github.com/thatsimonsguy/radiant-controller/internal/onewire"
)

const DefaultMaxDevices = 30

// Enumerator is the bus primitive the scanner drives.
type Enumerator interface {
	Enumerate(max int) ([]onewire.Device, error)
}

// Scanner runs sensor discovery off the control loop. The loop calls Poll
// once per tick; the bus walk itself happens on a worker goroutine so a slow
// conversion never stalls a tick.
type Scanner struct {
	bus        Enumerator
	maxDevices int
	now        func() time.Time

	state   model.ScanState
	pending *model.ScanReport
	results chan model.ScanReport
	last    *model.ScanReport
}

func New(bus Enumerator, maxDevices int) *Scanner {
	if maxDevices <= 0 {
		maxDevices = DefaultMaxDevices
	}
	return &Scanner{
		bus:        bus,
		maxDevices: maxDevices,
		now:        time.Now,
		state:      model.ScanIdle,
		results:    make(chan model.ScanReport, 1),
	}
}

func (s *Scanner) State() model.ScanState {
	return s.state
}

// LastReport returns the most recent completed scan, or nil.
func (s *Scanner) LastReport() *model.ScanReport {
	return s.last
}

// Trigger starts a scan. It returns false if one is already running.
func (s *Scanner) Trigger() bool {
	if s.state != model.ScanIdle {
		log.Warn().Str("state", string(s.state)).Msg("Sensor scan already in progress, ignoring trigger")
		return false
	}

	report := model.ScanReport{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
	}
	s.state = model.ScanScanning
	log.Info().Str("scan_id", report.ID).Int("max_devices", s.maxDevices).Msg("Starting 1-Wire sensor scan")

	go func() {
		devices, err := s.bus.Enumerate(s.maxDevices)
		s.results <- BuildReport(report, devices, err, s.now())
	}()
	return true
}

// Poll advances the state machine without blocking. It returns the report on
// the tick the scan completes.
func (s *Scanner) Poll() *model.ScanReport {
	switch s.state {
	case model.ScanScanning:
		select {
		case r := <-s.results:
			s.last = &r
			s.state = model.ScanReporting
			logReport(r)
			return &r
		default:
			return nil
		}
	case model.ScanReporting:
		s.state = model.ScanIdle
	}
	return nil
}

// BuildReport converts enumerated devices into a report. Unreadable devices
// are listed without a reading and are not counted.
func BuildReport(report model.ScanReport, devices []onewire.Device, err error, completed time.Time) model.ScanReport {
	report.CompletedAt = completed
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.Sensors = make([]model.DiscoveredSensor, 0, len(devices))
	for i, d := range devices {
		entry := model.DiscoveredSensor{Index: i, Address: d.Address}
		if d.Err != nil {
			entry.Error = d.Err.Error()
		} else {
			c := d.Celsius
			entry.Reading = &c
			report.Count++
		}
		report.Sensors = append(report.Sensors, entry)
	}
	return report
}

func logReport(r model.ScanReport) {
	if r.Error != "" {
		log.Error().Str("scan_id", r.ID).Str("error", r.Error).Msg("1-Wire sensor scan failed")
		return
	}

	log.Info().
		Str("scan_id", r.ID).
		Int("discovered_sensor_count", r.Count).
		Int("entries", len(r.Sensors)).
		Dur("took", r.CompletedAt.Sub(r.StartedAt)).
		Msg("1-Wire sensor scan complete")

	for _, d := range r.Sensors {
		ev := log.Info().Int("index", d.Index).Str("address", d.Address)
		if d.Reading != nil {
			ev.Float64("temp", *d.Reading).Msg("Discovered sensor")
		} else {
			ev.Str("error", d.Error).Msg("Discovered sensor unreadable")
		}
	}
}
