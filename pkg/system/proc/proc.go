//go:build linux

// Package proc reads what the current process actually used: CPU time from
// /proc/self/stat and resident memory from smaps_rollup or statm. The run
// summary reports it next to the modelled energy estimate.
package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ja7ad/rectask/pkg/types"
)

// Usage is a point-in-time reading for one process.
type Usage struct {
	UserTime   time.Duration `json:"user_ns"`
	SystemTime time.Duration `json:"system_ns"`
	RSS        types.Bytes   `json:"rss_bytes"`
}

// CPUTime is user plus system time.
func (u Usage) CPUTime() time.Duration { return u.UserTime + u.SystemTime }

// Sub returns the CPU time spent between prev and u. RSS is taken from u.
func (u Usage) Sub(prev Usage) Usage {
	out := Usage{RSS: u.RSS}
	if u.UserTime > prev.UserTime {
		out.UserTime = u.UserTime - prev.UserTime
	}
	if u.SystemTime > prev.SystemTime {
		out.SystemTime = u.SystemTime - prev.SystemTime
	}
	return out
}

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100.
//
// Note: the authoritative source is sysconf(_SC_CLK_TCK), which needs cgo.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// PageSize returns the memory page size in bytes, honouring a PAGE_SIZE
// override.
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// Self reads Usage for the calling process.
func Self() (Usage, error) {
	return Read("self")
}

// Read reads Usage for pid, which may be a number or "self".
func Read(pid string) (Usage, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%s/stat", pid))
	if err != nil {
		return Usage{}, err
	}
	defer f.Close()

	utime, stime, err := ParseStat(f)
	if err != nil {
		return Usage{}, err
	}
	tick := time.Second / time.Duration(ClockTicks())
	u := Usage{
		UserTime:   time.Duration(utime) * tick,
		SystemTime: time.Duration(stime) * tick,
	}

	rss, err := readRSS(pid)
	if err != nil {
		return Usage{}, err
	}
	u.RSS = rss
	return u, nil
}

// ParseStat extracts utime and stime (in jiffies) from a /proc/<pid>/stat line.
//
// comm (2nd field) is in parens and may contain spaces, so fields are
// counted from the last ") ".
func ParseStat(r io.Reader) (utime, stime uint64, err error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return 0, 0, ErrNoStat
	}
	line := sc.Text()

	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return 0, 0, ErrNoStat
	}
	fields := strings.Fields(line[i+2:])

	// utime and stime are the 14th and 15th fields overall.
	if len(fields) < 13 {
		return 0, 0, ErrShortStat
	}
	if utime, err = strconv.ParseUint(fields[11], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: utime: %v", ErrNoStat, err)
	}
	if stime, err = strconv.ParseUint(fields[12], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: stime: %v", ErrNoStat, err)
	}
	return utime, stime, nil
}

// readRSS prefers smaps_rollup (kernel 4.14+) and falls back to statm's
// resident page count.
func readRSS(pid string) (types.Bytes, error) {
	if f, err := os.Open(fmt.Sprintf("/proc/%s/smaps_rollup", pid)); err == nil {
		defer f.Close()
		if rss, ok := ParseSmapsRollup(f); ok {
			return rss, nil
		}
	}
	if b, err := os.ReadFile(fmt.Sprintf("/proc/%s/statm", pid)); err == nil {
		if rss, ok := ParseStatm(string(b), PageSize()); ok {
			return rss, nil
		}
	}
	return 0, ErrNoRSS
}

// ParseSmapsRollup returns the Rss: line of smaps_rollup in bytes.
func ParseSmapsRollup(r io.Reader) (types.Bytes, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if !strings.HasPrefix(sc.Text(), "Rss:") {
			continue
		}
		fs := strings.Fields(sc.Text())
		if len(fs) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fs[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return types.ToBytes(kb * 1024), true
	}
	return 0, false
}

// ParseStatm returns resident pages (2nd field of statm) times pageSize.
func ParseStatm(s string, pageSize int) (types.Bytes, bool) {
	fs := strings.Fields(s)
	if len(fs) < 2 {
		return 0, false
	}
	pages, err := strconv.ParseUint(fs[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return types.ToBytes(pages * uint64(pageSize)), true
}
