// Package gameversion compares detected game versions against the version a
// component declares support for.
package gameversion

import (
	"fmt"
	"strconv"
	"strings"
)

// Result is the outcome of checking a component against the installed game.
type Result int

const (
	// OK means the versions are equal.
	OK Result = iota
	// Unspecified means the component does not declare a supported version.
	Unspecified
	// Older means the installed game is older than the supported version.
	Older
	// Newer means the installed game is newer than the supported version.
	Newer
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Unspecified:
		return "unspecified"
	case Older:
		return "older"
	case Newer:
		return "newer"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Mismatch reports whether r should block an install.
func (r Result) Mismatch() bool {
	return r == Older || r == Newer
}

// Parse splits a dotted version like "2.1.9" or "1.0.0.3" into its numeric
// components. Two to four components are accepted.
func Parse(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	fields := strings.Split(v, ".")
	if len(fields) < 2 || len(fields) > 4 {
		return nil, fmt.Errorf("invalid version %q: expected 2 to 4 components", v)
	}

	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version %q: component %q is not a non-negative integer", v, f)
		}
		parts = append(parts, n)
	}
	return parts, nil
}

// Compare returns -1, 0 or +1 as a is lower than, equal to or higher than b.
// A missing component ranks below any present one, so "2.1" < "2.1.0".
func Compare(a, b string) (int, error) {
	ap, err := Parse(a)
	if err != nil {
		return 0, err
	}
	bp, err := Parse(b)
	if err != nil {
		return 0, err
	}

	for i := range max(len(ap), len(bp)) {
		av, bv := -1, -1
		if i < len(ap) {
			av = ap[i]
		}
		if i < len(bp) {
			bv = bp[i]
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
	}
	return 0, nil
}

// Check compares the detected game version with the supported one.
// Identical strings match without being parsed.
func Check(detected, supported string) (Result, error) {
	if supported == "" {
		return Unspecified, nil
	}
	if detected == supported {
		return OK, nil
	}

	cmp, err := Compare(detected, supported)
	if err != nil {
		return OK, fmt.Errorf("comparing game version %q with %q: %w", detected, supported, err)
	}
	switch {
	case cmp < 0:
		return Older, nil
	case cmp > 0:
		return Newer, nil
	default:
		return OK, nil
	}
}
