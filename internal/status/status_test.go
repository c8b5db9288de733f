package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

func temp(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		zone model.Zone
		want model.DisplayState
	}{
		{"idle", model.Zone{Temperature: temp(21)}, model.DisplayIdle},
		{"heating", model.Zone{Temperature: temp(18), RelayOn: true}, model.DisplayHeating},
		{"warning beats heating", model.Zone{Temperature: temp(18), RelayOn: true, ErrorScore: 50}, model.DisplayWarning},
		{"below warning", model.Zone{Temperature: temp(18), ErrorScore: 49}, model.DisplayIdle},
		{"power-on value", model.Zone{Temperature: temp(85), ErrorScore: 60}, model.DisplaySensorError},
		{"power-on band edge", model.Zone{Temperature: temp(84.5)}, model.DisplaySensorError},
		{"just outside band", model.Zone{Temperature: temp(85.6)}, model.DisplayIdle},
		{"missing sensor", model.Zone{ErrorScore: 80}, model.DisplaySensorMissing},
		{"disabled beats everything", model.Zone{Disabled: true, ErrorScore: 100}, model.DisplayDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.zone))
		})
	}
}

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	assert.Empty(t, r.Values())

	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{1, 2}, r.Values())

	r.Push(3)
	r.Push(4)
	assert.Equal(t, []int{2, 3, 4}, r.Values())
	assert.Equal(t, 3, r.Len())

	vals := r.Values()
	vals[0] = 99
	assert.Equal(t, []int{2, 3, 4}, r.Values(), "values are a copy")
}

func TestHistory_Record(t *testing.T) {
	h := NewHistory()
	assert.Len(t, h.Pump(), HistoryLength)

	zones := make([]model.Zone, model.NumZones)
	zones[0].Temperature = temp(20)
	h.Record(zones, true)

	zones[0].Temperature = temp(20.5)
	h.Record(zones, false)

	assert.Equal(t, []float64{20, 20.5}, h.Zone(1))
	assert.Empty(t, h.Zone(2), "zones without readings record nothing")
	assert.Nil(t, h.Zone(0))

	pump := h.Pump()
	assert.Len(t, pump, HistoryLength)
	assert.Equal(t, []bool{true, false}, pump[HistoryLength-2:])

	for i := 0; i < 50; i++ {
		h.Record(zones, false)
	}
	assert.Len(t, h.Zone(1), HistoryLength)
}
