//go:build linux

package host

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// CPUInfo is the subset of /proc/cpuinfo the report cares about.
type CPUInfo struct {
	Processors int
	ModelName  string
	MHz        float64
}

// ReadCPUInfo parses /proc/cpuinfo.
func ReadCPUInfo() (CPUInfo, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return CPUInfo{}, err
	}
	defer f.Close()
	return ParseCPUInfo(f)
}

// ParseCPUInfo reads cpuinfo-formatted "key : value" lines.
//
// Notes:
//   - ModelName and MHz are taken from the first processor that reports them.
//   - ARM kernels often print neither; that is not an error as long as at
//     least one "processor" line is present.
func ParseCPUInfo(r io.Reader) (CPUInfo, error) {
	var out CPUInfo
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "processor":
			out.Processors++
		case "model name", "Model":
			if out.ModelName == "" {
				out.ModelName = val
			}
		case "cpu MHz":
			if out.MHz == 0 {
				out.MHz, _ = strconv.ParseFloat(val, 64)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return CPUInfo{}, err
	}
	if out.Processors == 0 {
		return CPUInfo{}, ErrNoCPUInfo
	}
	return out, nil
}
