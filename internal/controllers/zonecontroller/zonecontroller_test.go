package zonecontroller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

func TestEvaluateDemand(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		valid   bool
		calling bool
		want    bool
	}{
		{name: "Well below band turns on", temp: 18.0, valid: true, calling: false, want: true},
		{name: "Exactly at lower edge turns on", temp: 19.5, valid: true, calling: false, want: true},
		{name: "Inside band holds off", temp: 20.0, valid: true, calling: false, want: false},
		{name: "Inside band holds on", temp: 20.4, valid: true, calling: true, want: true},
		{name: "Exactly at upper edge turns off", temp: 20.5, valid: true, calling: true, want: false},
		{name: "Above band turns off", temp: 20.6, valid: true, calling: true, want: false},
		{name: "Missing sensor forces off while calling", temp: 0, valid: false, calling: true, want: false},
		{name: "Missing sensor never calls", temp: 0, valid: false, calling: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateDemand(ZoneInput{
				ZoneID:      1,
				Temperature: tt.temp,
				Valid:       tt.valid,
				Setpoint:    20.0,
				Hysteresis:  1.0,
				Calling:     tt.calling,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDemand_NoChatterInsideBand(t *testing.T) {
	samples := []float64{19.4, 19.6, 19.9, 20.2, 19.7, 20.45, 19.8, 20.3}

	calling := false
	for i, temp := range samples {
		calling = EvaluateDemand(ZoneInput{
			ZoneID:      3,
			Temperature: temp,
			Valid:       true,
			Setpoint:    20.0,
			Hysteresis:  1.0,
			Calling:     calling,
		})
		assert.True(t, calling, "sample %d (%.2f°C) dropped demand inside the band", i, temp)
	}

	calling = EvaluateDemand(ZoneInput{ZoneID: 3, Temperature: 20.5, Valid: true, Setpoint: 20.0, Hysteresis: 1.0, Calling: calling})
	assert.False(t, calling)

	for _, temp := range []float64{20.4, 19.6, 20.0} {
		calling = EvaluateDemand(ZoneInput{ZoneID: 3, Temperature: temp, Valid: true, Setpoint: 20.0, Hysteresis: 1.0, Calling: calling})
		assert.False(t, calling, "%.2f°C re-asserted demand inside the band", temp)
	}
}

func TestRelayCommand(t *testing.T) {
	assert.True(t, RelayCommand(true, false))
	assert.False(t, RelayCommand(true, true))
	assert.False(t, RelayCommand(false, false))
	assert.False(t, RelayCommand(false, true))
}

func TestUpdateZone(t *testing.T) {
	temp := 18.0
	z := &model.Zone{ID: 1, Setpoint: 20.0, Temperature: &temp}

	assert.True(t, UpdateZone(z, 1.0))
	assert.True(t, z.CallingHeat)

	temp = 20.2
	assert.False(t, UpdateZone(z, 1.0))
	assert.True(t, z.CallingHeat)

	temp = 20.6
	assert.True(t, UpdateZone(z, 1.0))
	assert.False(t, z.CallingHeat)

	z.CallingHeat = true
	z.Temperature = nil
	assert.True(t, UpdateZone(z, 1.0))
	assert.False(t, z.CallingHeat)
}
