// Package timer provides elapsed-time counters that are advanced explicitly by
// the control loop instead of reading the wall clock.
package timer

import "time"

// Elapsed accumulates time while running. The zero value is stopped at zero.
type Elapsed struct {
	running bool
	elapsed time.Duration
}

// Advance adds dt if the counter is running.
func (e *Elapsed) Advance(dt time.Duration) {
	if e.running && dt > 0 {
		e.elapsed += dt
	}
}

// Run starts the counter if it is stopped and advances it by dt. A counter
// started this way counts the tick that started it.
func (e *Elapsed) Run(dt time.Duration) {
	e.running = true
	e.Advance(dt)
}

// Reset stops the counter and zeroes it.
func (e *Elapsed) Reset() {
	e.running = false
	e.elapsed = 0
}

func (e *Elapsed) Running() bool {
	return e.running
}

func (e *Elapsed) Elapsed() time.Duration {
	return e.elapsed
}

// Reached reports whether the counter is running and has accumulated at least d.
func (e *Elapsed) Reached(d time.Duration) bool {
	return e.running && e.elapsed >= d
}

// Interval fires once for every full period accumulated.
type Interval struct {
	Period time.Duration
	acc    time.Duration
}

// Advance adds dt and returns the number of whole periods that completed.
func (i *Interval) Advance(dt time.Duration) int {
	if i.Period <= 0 || dt <= 0 {
		return 0
	}
	i.acc += dt
	n := int(i.acc / i.Period)
	i.acc -= time.Duration(n) * i.Period
	return n
}

func (i *Interval) Reset() {
	i.acc = 0
}
