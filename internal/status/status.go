// Package status derives the operator-facing view of a zone: its display
// classification and a short history of readings for trend graphs.
package status

import (
	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

const (
	HistoryLength = 40

	// A DS18B20 reports 85 °C after power-on before its first conversion.
	powerOnLow  = 84.5
	powerOnHigh = 85.5
)

// Classify returns the display state for a zone. Earlier conditions win.
func Classify(z model.Zone) model.DisplayState {
	temp, ok := z.TemperatureOK()
	switch {
	case z.Disabled:
		return model.DisplayDisabled
	case !ok:
		return model.DisplaySensorMissing
	case temp >= powerOnLow && temp <= powerOnHigh:
		return model.DisplaySensorError
	case z.ErrorScore >= model.WarningScore:
		return model.DisplayWarning
	case z.RelayOn:
		return model.DisplayHeating
	default:
		return model.DisplayIdle
	}
}

// Ring keeps the most recent n values in insertion order.
type Ring[T any] struct {
	buf   []T
	next  int
	count int
}

func NewRing[T any](n int) *Ring[T] {
	return &Ring[T]{buf: make([]T, n)}
}

// NewFilledRing starts full of fill values, so a graph has a full width from
// the first sample.
func NewFilledRing[T any](n int, fill T) *Ring[T] {
	r := NewRing[T](n)
	for i := 0; i < n; i++ {
		r.Push(fill)
	}
	return r
}

func (r *Ring[T]) Push(v T) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *Ring[T]) Len() int {
	return r.count
}

// Values returns a copy, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// History samples zone temperatures and the pump relay.
type History struct {
	zones [model.NumZones]*Ring[float64]
	pump  *Ring[bool]
}

func NewHistory() *History {
	h := &History{pump: NewFilledRing(HistoryLength, false)}
	for i := range h.zones {
		h.zones[i] = NewRing[float64](HistoryLength)
	}
	return h
}

// Record appends one sample. Zones without a reading are skipped so a gap
// does not drag the trend line to zero.
func (h *History) Record(zones []model.Zone, pumpOn bool) {
	for i := range zones {
		if i >= len(h.zones) {
			break
		}
		if temp, ok := zones[i].TemperatureOK(); ok {
			h.zones[i].Push(temp)
		}
	}
	h.pump.Push(pumpOn)
}

func (h *History) Zone(id int) []float64 {
	if id < 1 || id > model.NumZones {
		return nil
	}
	return h.zones[id-1].Values()
}

func (h *History) Pump() []bool {
	return h.pump.Values()
}
