package gpio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	MinValveDebounce     = 10 * time.Millisecond
	DefaultValveDebounce = 50 * time.Millisecond
)

type debounced struct {
	line         int
	stable       bool
	pending      bool
	pendingSince time.Time
	hasPending   bool
}

// ValveReader samples the valve end-switch inputs and exposes a debounced
// level per zone. A level change is accepted only after it has been observed
// unchanged for the debounce duration. Until then the previous stable level
// (initially closed) is reported.
type ValveReader struct {
	lines    Lines
	debounce time.Duration
	zones    map[int]*debounced
	mu       sync.RWMutex
}

// NewValveReader maps zone IDs to input lines. Debounce durations below
// MinValveDebounce are raised to it.
func NewValveReader(lines Lines, zoneLines map[int]int, debounce time.Duration) *ValveReader {
	if debounce < MinValveDebounce {
		debounce = MinValveDebounce
	}
	zones := make(map[int]*debounced, len(zoneLines))
	for zone, line := range zoneLines {
		zones[zone] = &debounced{line: line}
	}
	return &ValveReader{lines: lines, debounce: debounce, zones: zones}
}

// Sample reads every input once and advances the debouncers.
func (v *ValveReader) Sample(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for zone, d := range v.zones {
		level, err := v.lines.Get(d.line)
		if err != nil {
			log.Error().Err(err).Int("zone", zone).Int("line", d.line).Msg("Failed to read valve feedback")
			continue
		}

		if level == d.stable {
			d.hasPending = false
			continue
		}
		if !d.hasPending || d.pending != level {
			d.pending = level
			d.pendingSince = now
			d.hasPending = true
			continue
		}
		if now.Sub(d.pendingSince) >= v.debounce {
			d.stable = level
			d.hasPending = false
			log.Info().Int("zone", zone).Bool("open", level).Msg("Valve feedback changed")
		}
	}
}

// Read returns the debounced "valve confirmed open" level for a zone.
func (v *ValveReader) Read(zone int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.zones[zone]
	return ok && d.stable
}

// Start samples in the background at a quarter of the debounce duration.
func (v *ValveReader) Start(ctx context.Context) {
	interval := v.debounce / 4
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				v.Sample(now)
			}
		}
	}()
}
