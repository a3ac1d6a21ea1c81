//go:build linux

// Package cgroup detects the cgroup hierarchy the process runs under and reads
// the CPU quota and memory limit that apply to it. The power model can use
// these to charge a container for what it may use rather than for the host.
package cgroup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type Version int

const (
	Unsupported Version = iota // non-Linux or no cgroup mounts
	V1                         // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	Hybrid                     // both v1 and v2 present
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Mounts lists the cgroup mount points found in mountinfo.
type Mounts struct {
	V1 []string
	V2 []string
}

// Version classifies the mounts.
func (m Mounts) Version() Version {
	switch {
	case len(m.V1) > 0 && len(m.V2) > 0:
		return Hybrid
	case len(m.V2) > 0:
		return V2
	case len(m.V1) > 0:
		return V1
	default:
		return Unsupported
	}
}

// Detail is a human-readable description of the mounts.
func (m Mounts) Detail() string {
	switch m.Version() {
	case Hybrid:
		return fmt.Sprintf("cgroup2 on %s; cgroup v1 on %s",
			strings.Join(m.V2, ","), strings.Join(m.V1, ","))
	case V2:
		return fmt.Sprintf("cgroup2 on %s", strings.Join(m.V2, ","))
	case V1:
		return fmt.Sprintf("cgroup v1 on %s", strings.Join(m.V1, ","))
	default:
		return "no cgroup mounts found"
	}
}

// Detect returns the detected cgroup version and a human-readable detail string.
// It parses /proc/self/mountinfo looking for cgroup filesystems.
func Detect() (Version, string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return Unsupported, "", fmt.Errorf("open mountinfo: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	m, err := ParseMountInfo(f)
	if err != nil {
		return Unsupported, "", err
	}
	return m.Version(), m.Detail(), nil
}

// ParseMountInfo collects cgroup mount points from mountinfo-formatted input.
//
// The line format has a " - fstype " separator; the mount point is field 5 of
// the part before it (man 5 proc).
func ParseMountInfo(r io.Reader) (Mounts, error) {
	var (
		m  Mounts
		sc = bufio.NewScanner(r)
	)
	for sc.Scan() {
		line := sc.Text()
		i := strings.LastIndex(line, " - ")
		if i < 0 {
			continue
		}
		tail := strings.Fields(line[i+3:])
		pre := strings.Fields(line[:i])
		if len(tail) < 1 || len(pre) < 5 {
			continue
		}

		switch tail[0] {
		case "cgroup2":
			m.V2 = append(m.V2, pre[4])
		case "cgroup":
			m.V1 = append(m.V1, pre[4])
		}
	}
	if err := sc.Err(); err != nil {
		return Mounts{}, fmt.Errorf("scan mountinfo: %w", err)
	}
	return m, nil
}
