//go:build linux

package cgroup

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ja7ad/rectask/pkg/types"
)

// ErrNoLimit indicates that no CPU or memory limit is configured for the process.
var ErrNoLimit = errors.New("cgroup: no limit")

// v1 reports "no limit" as a page-rounded LONG_MAX; anything at or above this is unlimited.
const v1Unlimited = uint64(1) << 62

// Limits holds the effective limits of the process's cgroup. A zero field
// means unlimited or unknown.
type Limits struct {
	Cores  float64
	Memory types.Bytes
}

// Reader resolves limits against a cgroup filesystem root.
// The zero value reads the live system.
type Reader struct {
	// Root is the cgroup mount root; defaults to /sys/fs/cgroup.
	Root string
	// SelfCgroup is the path of the process's /proc/<pid>/cgroup file;
	// defaults to /proc/self/cgroup.
	SelfCgroup string
}

// ReadLimits returns the limits for the current process using the detected version.
func ReadLimits() (Limits, error) {
	ver, _, err := Detect()
	if err != nil {
		return Limits{}, err
	}
	return Reader{}.Read(ver)
}

// Read returns the limits for the given hierarchy version. Hybrid hosts are
// read as v2 first, falling back to v1 controllers.
func (r Reader) Read(ver Version) (Limits, error) {
	var (
		lim Limits
		err error
	)
	switch ver {
	case V2:
		lim, err = r.readV2()
	case Hybrid:
		lim, err = r.readV2()
		if err != nil || lim == (Limits{}) {
			lim, err = r.readV1()
		}
	case V1:
		lim, err = r.readV1()
	default:
		return Limits{}, ErrNoLimit
	}
	if err != nil {
		return Limits{}, err
	}
	if lim == (Limits{}) {
		return Limits{}, ErrNoLimit
	}
	return lim, nil
}

func (r Reader) root() string {
	if r.Root != "" {
		return r.Root
	}
	return "/sys/fs/cgroup"
}

func (r Reader) self() string {
	if r.SelfCgroup != "" {
		return r.SelfCgroup
	}
	return "/proc/self/cgroup"
}

func (r Reader) readV2() (Limits, error) {
	rel, err := r.selfPath("")
	if err != nil {
		return Limits{}, err
	}
	dir := filepath.Join(r.root(), rel)

	var lim Limits
	if b, err := os.ReadFile(filepath.Join(dir, "cpu.max")); err == nil {
		lim.Cores, _ = ParseCPUMax(string(b))
	}
	if b, err := os.ReadFile(filepath.Join(dir, "memory.max")); err == nil {
		lim.Memory, _ = ParseMemoryMax(string(b))
	}
	return lim, nil
}

func (r Reader) readV1() (Limits, error) {
	var lim Limits

	if rel, err := r.selfPath("cpu"); err == nil {
		dir := filepath.Join(r.root(), "cpu", rel)
		quota, qerr := readInt(filepath.Join(dir, "cpu.cfs_quota_us"))
		period, perr := readInt(filepath.Join(dir, "cpu.cfs_period_us"))
		if qerr == nil && perr == nil && quota > 0 && period > 0 {
			lim.Cores = float64(quota) / float64(period)
		}
	}
	if rel, err := r.selfPath("memory"); err == nil {
		dir := filepath.Join(r.root(), "memory", rel)
		if v, err := readInt(filepath.Join(dir, "memory.limit_in_bytes")); err == nil &&
			v > 0 && uint64(v) < v1Unlimited {
			lim.Memory = types.ToBytes(uint64(v))
		}
	}
	return lim, nil
}

// selfPath returns the cgroup path of the process for a v1 controller, or the
// unified v2 path when controller is empty.
func (r Reader) selfPath(controller string) (string, error) {
	f, err := os.Open(r.self())
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ParseSelfCgroup(f, controller)
}

// ParseSelfCgroup reads /proc/<pid>/cgroup lines of the form
// "hierarchy-ID:controller-list:cgroup-path".
func ParseSelfCgroup(rd io.Reader, controller string) (string, error) {
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		parts := strings.SplitN(sc.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		if controller == "" {
			if parts[0] == "0" && parts[1] == "" {
				return parts[2], nil
			}
			continue
		}
		for _, c := range strings.Split(parts[1], ",") {
			if c == controller {
				return parts[2], nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", ErrNoLimit
}

// ParseCPUMax parses the v2 cpu.max format "<quota|max> <period>" into cores.
func ParseCPUMax(s string) (float64, bool) {
	fs := strings.Fields(s)
	if len(fs) == 0 || fs[0] == "max" {
		return 0, false
	}
	quota, err := strconv.ParseFloat(fs[0], 64)
	if err != nil || quota <= 0 {
		return 0, false
	}
	period := 100000.0
	if len(fs) > 1 {
		if p, err := strconv.ParseFloat(fs[1], 64); err == nil && p > 0 {
			period = p
		}
	}
	return quota / period, true
}

// ParseMemoryMax parses the v2 memory.max format "<bytes|max>".
func ParseMemoryMax(s string) (types.Bytes, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "max" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return types.ToBytes(v), true
}

func readInt(path string) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
}
