//go:build linux

package host

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const x86CPUInfo = `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU @ 2.20GHz
cpu MHz		: 2200.152
cache size	: 56320 KB

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU @ 2.20GHz
cpu MHz		: 2199.998
`

const armCPUInfo = `processor	: 0
BogoMIPS	: 108.00
Features	: fp asimd evtstrm crc32 cpuid

processor	: 1
BogoMIPS	: 108.00

Hardware	: BCM2835
Model		: Raspberry Pi 4 Model B Rev 1.4
`

func TestParseCPUInfo_X86(t *testing.T) {
	info, err := ParseCPUInfo(strings.NewReader(x86CPUInfo))
	require.NoError(t, err)
	assert.Equal(t, 2, info.Processors)
	assert.Equal(t, "Intel(R) Xeon(R) CPU @ 2.20GHz", info.ModelName)
	assert.InDelta(t, 2200.152, info.MHz, 1e-9, "first processor wins")
}

func TestParseCPUInfo_ARM(t *testing.T) {
	info, err := ParseCPUInfo(strings.NewReader(armCPUInfo))
	require.NoError(t, err)
	assert.Equal(t, 2, info.Processors)
	assert.Equal(t, "Raspberry Pi 4 Model B Rev 1.4", info.ModelName)
	assert.Zero(t, info.MHz)
}

func TestParseCPUInfo_Empty(t *testing.T) {
	_, err := ParseCPUInfo(strings.NewReader("garbage\n\n"))
	assert.ErrorIs(t, err, ErrNoCPUInfo)
}

func TestRead_Self(t *testing.T) {
	info, err := Read()
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), info.CoreCount)
	assert.Greater(t, uint64(info.TotalRAM), uint64(0))
	assert.Greater(t, info.RAMGB(), 0.0)
	assert.NotEmpty(t, info.Hostname)

	t.Logf("host=%s kernel=%s cores=%d ram=%s cpu=%q mhz=%.1f",
		info.Hostname, info.Kernel, info.CoreCount, info.TotalRAM.Humanized(), info.ModelName, info.MHz)
}

func TestTotalMemory(t *testing.T) {
	ram, err := TotalMemory()
	require.NoError(t, err)
	assert.Greater(t, ram.GB(), 0.0)
}
