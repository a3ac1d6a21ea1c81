package proc

import "errors"

var (
	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoRSS indicates that resident set size could not be determined
	// (neither smaps_rollup nor statm succeeded).
	ErrNoRSS = errors.New("proc: no rss")
)
