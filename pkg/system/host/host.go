//go:build linux

// Package host reads the static machine facts the power model is built from:
// logical core count, total RAM, CPU clock and model name, plus the hostname
// and kernel release printed in the report header.
//
// All readers are pure Go. Memory and uname come from golang.org/x/sys/unix;
// CPU details are parsed from /proc/cpuinfo and are best-effort (some
// architectures and sandboxes omit "model name" or "cpu MHz").
package host

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/ja7ad/rectask/pkg/types"
)

// Read collects Info for the current host.
//
// Core count and total RAM are mandatory; CPU model and clock are filled when
// /proc/cpuinfo provides them.
func Read() (Info, error) {
	info := Info{CoreCount: runtime.NumCPU()}

	ram, err := TotalMemory()
	if err != nil {
		return Info{}, err
	}
	info.TotalRAM = ram

	if cpu, err := ReadCPUInfo(); err == nil {
		info.MHz = cpu.MHz
		info.ModelName = cpu.ModelName
	}

	info.Hostname, info.Kernel = Uname()
	return info, nil
}

// TotalMemory returns the total usable RAM reported by sysinfo(2).
func TotalMemory() (types.Bytes, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, fmt.Errorf("%w: sysinfo: %v", ErrNoMemory, err)
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(si.Totalram) * unit
	if total == 0 {
		return 0, ErrNoMemory
	}
	return types.ToBytes(total), nil
}

// Uname returns the node name and kernel release. Empty strings are returned
// when uname(2) fails; the hostname falls back to os.Hostname.
func Uname() (hostname, kernel string) {
	var u unix.Utsname
	if err := unix.Uname(&u); err == nil {
		hostname = unix.ByteSliceToString(u.Nodename[:])
		kernel = unix.ByteSliceToString(u.Release[:])
	}
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return hostname, kernel
}
