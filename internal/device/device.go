package device

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Setter is the relay driver an output writes through.
type Setter interface {
	Set(line int, on bool) error
}

// Output is one commanded relay: a zone valve actuator or the circulation
// pump. The driver is written only when the commanded state changes. A failed
// write leaves IsOn untouched so the next command retries it.
type Output struct {
	Name        string
	Line        int
	IsOn        bool
	LastChanged time.Time

	driver  Setter
	written bool
}

func NewOutput(name string, line int, driver Setter) *Output {
	return &Output{Name: name, Line: line, driver: driver}
}

// Command drives the output to on. It reports whether the physical state
// changed.
func (o *Output) Command(on bool, now time.Time) bool {
	if o.written && on == o.IsOn {
		return false
	}

	if err := o.driver.Set(o.Line, on); err != nil {
		log.Error().Err(err).Str("device", o.Name).Int("line", o.Line).Bool("on", on).Msg("Relay write failed")
		return false
	}

	o.written = true
	if on == o.IsOn {
		// first write confirming the power-on state
		return false
	}

	if on {
		log.Info().Str("device", o.Name).Msg("Turned ON")
	} else {
		log.Info().Str("device", o.Name).Dur("on_for", o.OnFor(now)).Msg("Turned OFF")
	}
	o.IsOn = on
	o.LastChanged = now
	return true
}

// OnFor returns how long the output has been on, or zero.
func (o *Output) OnFor(now time.Time) time.Duration {
	if !o.IsOn {
		return 0
	}
	return now.Sub(o.LastChanged)
}
