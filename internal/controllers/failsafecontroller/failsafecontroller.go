package failsafecontroller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
	"github.com/thatsimonsguy/radiant-controller/internal/timer"
)

const (
	ScoringInterval = 30 * time.Second
	ValveTimeout    = 10 * time.Minute
	NoRiseWindow    = 5 * time.Minute
	MinRise         = 0.2

	FailStep    = 5
	RecoverStep = 1

	DefaultDisableDelay = 5 * time.Minute
)

// Observation is what the monitor sees of its zone on one tick.
type Observation struct {
	RelayOn     bool
	ValveOpen   bool
	Temperature float64
	Valid       bool
}

// Result describes what happened to a monitor during one Update.
type Result struct {
	Scored        int // scoring intervals completed this tick
	ValveFailing  bool
	NoRiseFailing bool
	ScoreBefore   int
	ScoreAfter    int
	NewlyDisabled bool
}

// Monitor scores two independent failure detectors for one zone and latches
// the zone disabled once the score has been pinned at the maximum long enough.
type Monitor struct {
	ZoneID   int
	Score    int
	Disabled bool

	valveTimer   timer.Elapsed
	riseTimer    timer.Elapsed
	riseStart    float64
	disableTimer timer.Elapsed
	scoring      timer.Interval

	valveFailing  bool
	riseFailing   bool
	intervalFault bool
}

func NewMonitor(zoneID int) *Monitor {
	return &Monitor{
		ZoneID:  zoneID,
		scoring: timer.Interval{Period: ScoringInterval},
	}
}

// Update advances the detectors by dt and applies any scoring intervals that
// completed. Scoring is frozen while the zone is disabled.
func (m *Monitor) Update(obs Observation, dt time.Duration, disableDelay time.Duration) Result {
	res := Result{ScoreBefore: m.Score, ScoreAfter: m.Score}
	if m.Disabled {
		return res
	}

	m.updateValveDetector(obs, dt)
	m.updateRiseDetector(obs, dt)
	res.ValveFailing = m.valveFailing
	res.NoRiseFailing = m.riseFailing

	failing := m.valveFailing || m.riseFailing
	m.intervalFault = m.intervalFault || failing

	for n := m.scoring.Advance(dt); n > 0; n-- {
		m.applyScore(m.intervalFault || failing)
		m.intervalFault = false
		res.Scored++
	}
	res.ScoreAfter = m.Score

	if m.Score >= model.MaxErrorScore {
		m.disableTimer.Run(dt)
	} else {
		m.disableTimer.Reset()
	}

	if m.disableTimer.Reached(disableDelay) {
		m.Disabled = true
		res.NewlyDisabled = true
		log.Error().
			Int("zone", m.ZoneID).
			Int("error_score", m.Score).
			Dur("held_for", m.disableTimer.Elapsed()).
			Msg("Zone error score held at maximum, disabling zone")
	}

	return res
}

func (m *Monitor) updateValveDetector(obs Observation, dt time.Duration) {
	if obs.RelayOn && !obs.ValveOpen {
		m.valveTimer.Run(dt)
	} else {
		m.valveTimer.Reset()
	}

	failing := m.valveTimer.Reached(ValveTimeout)
	if failing && !m.valveFailing {
		log.Warn().
			Int("zone", m.ZoneID).
			Dur("waited", m.valveTimer.Elapsed()).
			Msg("Valve has not confirmed open since relay energized")
	}
	m.valveFailing = failing
}

func (m *Monitor) updateRiseDetector(obs Observation, dt time.Duration) {
	if !(obs.RelayOn && obs.ValveOpen && obs.Valid) {
		m.riseTimer.Reset()
		m.riseFailing = false
		return
	}

	if !m.riseTimer.Running() {
		m.riseStart = obs.Temperature
	}
	m.riseTimer.Run(dt)

	if !m.riseTimer.Reached(NoRiseWindow) {
		return
	}

	rise := obs.Temperature - m.riseStart
	if rise < MinRise {
		if !m.riseFailing {
			log.Warn().
				Int("zone", m.ZoneID).
				Float64("window_start_temp", m.riseStart).
				Float64("temp", obs.Temperature).
				Float64("rise", rise).
				Msg("No temperature rise while heating with valve open")
		}
		m.riseFailing = true
		return
	}

	// Window satisfied; start a fresh one from here.
	m.riseFailing = false
	m.riseTimer.Reset()
}

func (m *Monitor) applyScore(failed bool) {
	before := m.Score
	if failed {
		m.Score += FailStep
	} else {
		m.Score -= RecoverStep
	}
	m.Score = clampScore(m.Score)

	if m.Score != before {
		log.Debug().
			Int("zone", m.ZoneID).
			Int("from", before).
			Int("to", m.Score).
			Bool("failed", failed).
			Msg("Zone error score updated")
	}
	if before < model.WarningScore && m.Score >= model.WarningScore {
		log.Warn().Int("zone", m.ZoneID).Int("error_score", m.Score).Msg("Zone entered warning")
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > model.MaxErrorScore {
		return model.MaxErrorScore
	}
	return s
}

// Reset clears the score, the disable latch and every detector window so the
// zone gets a fresh observation period.
func (m *Monitor) Reset() {
	m.Score = 0
	m.Disabled = false
	m.valveTimer.Reset()
	m.riseTimer.Reset()
	m.disableTimer.Reset()
	m.scoring.Reset()
	m.valveFailing = false
	m.riseFailing = false
	m.intervalFault = false
}
