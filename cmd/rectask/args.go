//go:build linux

package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ja7ad/rectask/pkg/enumerate"
)

var errUsage = errors.New("please provide valid numbers for a and b")

// flagError reports a negative positional such as "-5", which pflag reads as
// an unknown shorthand, as a usage error instead.
func flagError(args []string) func(*cobra.Command, error) error {
	return func(_ *cobra.Command, err error) error {
		for _, a := range args {
			if a == "--" {
				break
			}
			if len(a) > 1 && a[0] == '-' && a[1] >= '0' && a[1] <= '9' {
				return fmt.Errorf("%w: bounds must be >= 0, got %s", errUsage, a)
			}
		}
		return err
	}
}

// invocation is what the positional arguments say.
type invocation struct {
	Range enumerate.Range

	// Limit is the budget given on the command line; zero means none was
	// given and the configured limit applies.
	Limit float64
}

// parseArgs reads `<a> <b> [energyLimit]`. Bounds must be base-10 integers
// >= 0. A limit that is missing, zero or unparsable falls back to the
// configured one, except in reporting mode where an unparsable limit is an
// error. NaN and Inf count as unparsable.
func parseArgs(args []string, reporting bool) (invocation, error) {
	if len(args) < 2 {
		return invocation{}, errUsage
	}

	a, err := parseBound(args[0])
	if err != nil {
		return invocation{}, err
	}
	b, err := parseBound(args[1])
	if err != nil {
		return invocation{}, err
	}
	inv := invocation{Range: enumerate.Range{A: a, B: b}}

	if len(args) < 3 {
		return inv, nil
	}
	limit, err := strconv.ParseFloat(strings.TrimSpace(args[2]), 64)
	if err == nil && (math.IsNaN(limit) || math.IsInf(limit, 0)) {
		err = strconv.ErrSyntax
	}
	switch {
	case err != nil && reporting:
		return invocation{}, fmt.Errorf("energy limit %q is not a number", args[2])
	case err != nil:
		return inv, nil
	case limit < 0:
		return invocation{}, fmt.Errorf("energy limit must be >= 0, got %s", args[2])
	}
	inv.Limit = limit
	return inv, nil
}

func parseBound(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0, errUsage
	}
	return v, nil
}
