package host

import "errors"

var (
	// ErrNoCPUInfo indicates that /proc/cpuinfo could not be read or had no processor entries.
	ErrNoCPUInfo = errors.New("host: no cpuinfo")

	// ErrNoMemory indicates that total memory could not be determined.
	ErrNoMemory = errors.New("host: no memory info")
)
