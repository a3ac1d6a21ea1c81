package types

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_Humanized_Boundaries(t *testing.T) {
	cases := []struct {
		in   Bytes
		want string
	}{
		{Bytes(0), "0 B"},
		{Bytes(1023), "1023 B"},
		{Bytes(1024), "1.00 KB"},
		{Bytes(1024 * 1024), "1.00 MB"},
		{Bytes(1024*1024*1024 - 1), "1024.00 MB"},
		{Bytes(1024 * 1024 * 1024), "1.00 GB"},
		{Bytes(1 << 40), "1.00 TB"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d_%d", i, uint64(tc.in)), func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Humanized())
		})
	}
}

func TestBytes_GB(t *testing.T) {
	assert.InDelta(t, 1.0, Bytes(1<<30).GB(), 1e-12)
	assert.InDelta(t, 16.0, ToBytes(16<<30).GB(), 1e-12)

	// 12.5 GiB machines are common in VMs
	b := Bytes(uint64(math.Round(12.5 * float64(1<<30))))
	assert.InDelta(t, 12.5, b.GB(), 1e-9)
}

func TestBytes_Min(t *testing.T) {
	assert.Equal(t, Bytes(5), Bytes(5).Min(0), "zero is unknown")
	assert.Equal(t, Bytes(5), Bytes(0).Min(5), "zero is unknown")
	assert.Equal(t, Bytes(3), Bytes(5).Min(3))
	assert.Equal(t, Bytes(3), Bytes(3).Min(5))
}

func TestMilliwattHours(t *testing.T) {
	assert.Equal(t, "12.346 mWh", MilliwattHours(12.3456).String())
	assert.Equal(t, "0.000 mWh", MilliwattHours(0).String())
	assert.Equal(t, 1.5, MilliwattHours(1.5).Float64())
}

func TestMillis(t *testing.T) {
	assert.InDelta(t, 1.5, Millis(1500*time.Microsecond), 1e-12)
	assert.InDelta(t, 2000.0, Millis(2*time.Second), 1e-12)
}
