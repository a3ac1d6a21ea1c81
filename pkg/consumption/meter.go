package consumption

import (
	"time"
)

// Clock abstracts wall-clock time so tests can drive the meter.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Meter converts elapsed wall-clock time into consumed energy at a fixed rate.
type Meter struct {
	clock   Clock
	rate    float64
	start   time.Time
	elapsed time.Duration
	energy  float64
}

// NewMeter starts a meter at clock.Now(). A nil clock uses SystemClock.
func NewMeter(rate PowerRate, clock Clock) *Meter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Meter{
		clock: clock,
		rate:  rate.RateMilliwattHoursPerHour,
		start: clock.Now(),
	}
}

// Read samples the clock and returns elapsed time and cumulative energy.
//
// Energy is computed from total elapsed time, not accumulated per call:
//
//	E = hours(now - start) * rate
//
// Readings never go backwards: a clock that steps back repeats the previous value.
func (m *Meter) Read() (time.Duration, float64) {
	d := m.clock.Now().Sub(m.start)
	if d > m.elapsed {
		m.elapsed = d
		m.energy = d.Hours() * m.rate
	}
	return m.elapsed, m.energy
}
