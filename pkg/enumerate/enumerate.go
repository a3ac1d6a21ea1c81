// Package enumerate walks an integer range collecting primes while charging
// the elapsed wall-clock time against an energy budget.
package enumerate

import (
	"time"

	"github.com/ja7ad/rectask/pkg/consumption"
	"github.com/ja7ad/rectask/pkg/prime"
)

// SampleEvery is the iteration stride at which energy is sampled. Samples are
// taken when i%SampleEvery == 0, so the overrun point is approximate.
const SampleEvery = 100

// Status is the outcome of one enumeration.
type Status int

const (
	Completed      Status = iota // range finished within budget
	EnergyExceeded               // a sample measured more energy than the budget allows
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case EnergyExceeded:
		return "energy_exceeded"
	default:
		return "unknown"
	}
}

// Range is the inclusive interval [A, B]. A > B is an empty range.
type Range struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

// Budget caps estimated energy consumption in mWh.
type Budget struct {
	LimitMilliwattHours float64 `json:"limit_mwh"`
}

// Exceeded reports whether energy is strictly above the limit.
func (b Budget) Exceeded(energy float64) bool { return energy > b.LimitMilliwattHours }

// Sample is one energy reading taken inside the loop.
type Sample struct {
	Iteration            int64         `json:"iteration"`
	Elapsed              time.Duration `json:"elapsed_ns"`
	EnergyMilliwattHours float64       `json:"energy_mwh"`
	PrimesSoFar          int           `json:"primes_so_far"`
}

// RunResult is what one enumeration produced.
type RunResult struct {
	Range                Range         `json:"range"`
	Budget               Budget        `json:"budget"`
	Primes               []int64       `json:"primes"`
	Samples              []Sample      `json:"samples"`
	Elapsed              time.Duration `json:"elapsed_ns"`
	EnergyMilliwattHours float64       `json:"energy_mwh"`
	Status               Status        `json:"status"`

	// StoppedAt is the iteration whose sample tripped the budget; only
	// meaningful when Status is EnergyExceeded.
	StoppedAt int64 `json:"stopped_at,omitempty"`
}

// DeltaMilliwattHours is the budget headroom left (negative when exceeded).
func (r RunResult) DeltaMilliwattHours() float64 {
	return r.Budget.LimitMilliwattHours - r.EnergyMilliwattHours
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithClock sets the time source used by the meter.
func WithClock(c consumption.Clock) Option {
	return func(e *Enumerator) { e.clock = c }
}

// WithSampleHook registers fn to observe every in-loop sample.
func WithSampleHook(fn func(Sample)) Option {
	return func(e *Enumerator) { e.onSample = fn }
}

// Enumerator runs the budgeted prime search at a fixed power rate.
type Enumerator struct {
	rate     consumption.PowerRate
	clock    consumption.Clock
	onSample func(Sample)
}

// New creates an Enumerator charging energy at rate.
func New(rate consumption.PowerRate, opts ...Option) *Enumerator {
	e := &Enumerator{rate: rate}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run enumerates r under budget b.
//
// For every i in [A, B]: primes are appended as found, and when i%100 == 0
// the meter is read. If that reading strictly exceeds the budget the loop
// stops at once with EnergyExceeded, keeping the primes found up to and
// including i. Otherwise the run is Completed and a closing reading supplies
// the reported elapsed time and energy.
func (e *Enumerator) Run(r Range, b Budget) RunResult {
	res := RunResult{
		Range:   r,
		Budget:  b,
		Primes:  make([]int64, 0),
		Samples: make([]Sample, 0),
		Status:  Completed,
	}
	meter := consumption.NewMeter(e.rate, e.clock)

	for i := r.A; i <= r.B; i++ {
		if prime.IsPrime(i) {
			res.Primes = append(res.Primes, i)
		}

		if i%SampleEvery == 0 {
			elapsed, energy := meter.Read()
			s := Sample{
				Iteration:            i,
				Elapsed:              elapsed,
				EnergyMilliwattHours: energy,
				PrimesSoFar:          len(res.Primes),
			}
			res.Samples = append(res.Samples, s)
			if e.onSample != nil {
				e.onSample(s)
			}

			if b.Exceeded(energy) {
				res.Status = EnergyExceeded
				res.StoppedAt = i
				res.Elapsed = elapsed
				res.EnergyMilliwattHours = energy
				return res
			}
		}

		// guard the increment against wrapping at MaxInt64
		if i == r.B {
			break
		}
	}

	res.Elapsed, res.EnergyMilliwattHours = meter.Read()
	return res
}
