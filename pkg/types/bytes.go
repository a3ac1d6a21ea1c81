package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// ToBytes converts a raw counter to Bytes.
func ToBytes(v uint64) Bytes { return Bytes(v) }

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// GB returns the number of gigabytes (1024 base). The power model charges
// memory per GB of this value.
func (b Bytes) GB() float64 { return float64(b) / (1 << 30) }

// Min returns the smaller of b and o, treating zero as "unknown".
func (b Bytes) Min(o Bytes) Bytes {
	switch {
	case b == 0:
		return o
	case o == 0:
		return b
	case o < b:
		return o
	default:
		return b
	}
}
