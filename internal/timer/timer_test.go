package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed_ZeroValueStopped(t *testing.T) {
	var e Elapsed
	e.Advance(time.Second)
	assert.False(t, e.Running())
	assert.Equal(t, time.Duration(0), e.Elapsed())
	assert.False(t, e.Reached(0))
}

func TestElapsed_RunAccumulatesAndResets(t *testing.T) {
	var e Elapsed
	for i := 0; i < 5; i++ {
		e.Run(time.Second)
	}
	assert.True(t, e.Reached(5*time.Second))
	assert.False(t, e.Reached(6*time.Second))

	e.Reset()
	assert.False(t, e.Running())
	assert.Equal(t, time.Duration(0), e.Elapsed())
}

func TestElapsed_IgnoresNegativeDelta(t *testing.T) {
	var e Elapsed
	e.Run(2 * time.Second)
	e.Run(-time.Second)
	assert.Equal(t, 2*time.Second, e.Elapsed())
}

func TestInterval_FiresPerPeriod(t *testing.T) {
	i := Interval{Period: 30 * time.Second}

	fired := 0
	for n := 0; n < 120; n++ {
		fired += i.Advance(time.Second)
	}
	assert.Equal(t, 4, fired)

	assert.Equal(t, 2, i.Advance(time.Minute))
	assert.Equal(t, 0, i.Advance(29*time.Second))
	assert.Equal(t, 1, i.Advance(time.Second))
}

func TestInterval_ZeroPeriodNeverFires(t *testing.T) {
	var i Interval
	assert.Equal(t, 0, i.Advance(time.Hour))
}
