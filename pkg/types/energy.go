package types

import (
	"fmt"
	"time"
)

// MilliwattHours is an energy quantity in mWh, the unit budgets are expressed in.
type MilliwattHours float64

// String formats the value with three decimals, e.g. "12.345 mWh".
func (e MilliwattHours) String() string {
	return fmt.Sprintf("%.3f mWh", float64(e))
}

// Float64 returns the raw value.
func (e MilliwattHours) Float64() float64 { return float64(e) }

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
