// Package gpio drives the zone and pump relays and reads valve end-switch
// feedback. Hardware access goes through the Lines interface so the control
// loop can run against FakeLines in tests and on development machines.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Lines is the raw line-level access the controller needs. Values are
// logical: true means active (relay energized, valve confirmed open) after
// any active-low inversion has been applied.
type Lines interface {
	Set(line int, active bool) error
	Get(line int) (bool, error)
	Close() error
}

var safeMode bool

// SetSafeMode suppresses every relay write. Reads are unaffected.
func SetSafeMode(enabled bool) {
	safeMode = enabled
	if enabled {
		log.Warn().Msg("GPIO safe mode enabled, relay outputs will not be driven")
	}
}

func SafeMode() bool {
	return safeMode
}

// RelayDriver writes relay outputs. In safe mode writes are dropped.
type RelayDriver struct {
	lines  Lines
	relays []int
	mu     sync.Mutex
}

func NewRelayDriver(lines Lines, relays []int) *RelayDriver {
	return &RelayDriver{lines: lines, relays: relays}
}

func (d *RelayDriver) Set(line int, on bool) error {
	if safeMode {
		log.Debug().Int("line", line).Bool("on", on).Msg("Safe mode, skipping relay write")
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.lines.Set(line, on); err != nil {
		return fmt.Errorf("set relay line %d: %w", line, err)
	}
	return nil
}

// AllOff de-energizes every relay, continuing past failures.
func (d *RelayDriver) AllOff() error {
	var errs []error
	for _, line := range d.relays {
		if err := d.Set(line, false); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Int("relays", len(d.relays)).Msg("All relays off")
	return nil
}
