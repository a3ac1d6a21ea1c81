package host

import (
	"math"

	"github.com/ja7ad/rectask/pkg/types"
)

// Info describes the host as seen once at process start.
type Info struct {
	Hostname  string
	Kernel    string
	CoreCount int
	TotalRAM  types.Bytes
	MHz       float64
	ModelName string
}

// RAMGB returns total memory in GB (1024 base).
func (i Info) RAMGB() float64 { return i.TotalRAM.GB() }

// Constrain caps the core count and RAM by a container limit. A fractional
// CPU quota is rounded up to whole cores; zero values leave the field alone.
func (i Info) Constrain(cores float64, mem types.Bytes) Info {
	if cores > 0 {
		if c := int(math.Ceil(cores)); c < i.CoreCount {
			i.CoreCount = c
		}
	}
	i.TotalRAM = i.TotalRAM.Min(mem)
	return i
}
