// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package series reasons about Linux Lite release series identifiers.
//
// Releases are published in numbered series ("6.0", "10.2 LTS").
// Plain string comparison breaks once two-digit majors exist ("10"
// sorts before "6" lexicographically), so labels are canonicalised to
// semantic versions and ordered numerically.
package series

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/mod/semver"
)

// ErrBadSeries is returned when a label contains no numeric version.
var ErrBadSeries = errors.New("series label contains no numeric version")

var numberRe = regexp.MustCompile(`\d+`)

// Canonical converts a series label into a canonical semantic version
// ("6.2 Beta" -> "v6.2.0"). Only the digits matter, which tolerates
// suffixes like "Final" or "(LTS)". Labels carry at most three
// numeric components in practice; extras are ignored.
func Canonical(label string) (string, error) {
	parts := numberRe.FindAllString(label, 3)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrBadSeries, label)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrBadSeries, label)
		}
		nums[i] = n
	}
	return fmt.Sprintf("v%d.%d.%d", nums[0], nums[1], nums[2]), nil
}

// Compare orders two labels by their numeric components, returning
// -1, 0 or +1 like semver.Compare.
func Compare(a, b string) (int, error) {
	ca, err := Canonical(a)
	if err != nil {
		return 0, err
	}
	cb, err := Canonical(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(ca, cb), nil
}

// Sort returns the labels ordered by numeric version. The input is
// copied, not mutated. Fails if any label has no numeric content.
func Sort(labels []string) ([]string, error) {
	canon := make(map[string]string, len(labels))
	for _, l := range labels {
		c, err := Canonical(l)
		if err != nil {
			return nil, err
		}
		canon[l] = c
	}
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool {
		return semver.Compare(canon[out[i]], canon[out[j]]) < 0
	})
	return out, nil
}

// PathOptions tunes UpgradePath.
type PathOptions struct {
	// Target stops the path at the given series. Empty means "all
	// newer series".
	Target string

	// IncludeCurrent starts the path with the current series when it
	// appears in the available list.
	IncludeCurrent bool
}

// UpgradePath returns the ordered series path after current.
//
// The available list need not be sorted and may contain duplicates or
// decorated labels. With a Target, the path ends exactly at it; a
// Target that is older than current or absent from the available list
// is an error.
func UpgradePath(current string, available []string, opts PathOptions) ([]string, error) {
	curCanon, err := Canonical(current)
	if err != nil {
		return nil, err
	}

	var targetCanon string
	if opts.Target != "" {
		targetCanon, err = Canonical(opts.Target)
		if err != nil {
			return nil, err
		}
		if semver.Compare(targetCanon, curCanon) < 0 {
			return nil, fmt.Errorf("target series %q is older than current %q", opts.Target, current)
		}
	}

	ordered, err := Sort(available)
	if err != nil {
		return nil, err
	}

	var path []string
	seen := map[string]bool{}
	for _, candidate := range ordered {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true

		c, _ := Canonical(candidate)
		cmp := semver.Compare(c, curCanon)
		if opts.IncludeCurrent {
			if cmp < 0 {
				continue
			}
		} else if cmp <= 0 {
			continue
		}

		path = append(path, candidate)

		if targetCanon != "" {
			tc := semver.Compare(c, targetCanon)
			if tc == 0 {
				break
			}
			if tc > 0 {
				return nil, fmt.Errorf("target series %q was not found in the available list", opts.Target)
			}
		}
	}

	if targetCanon != "" {
		if len(path) == 0 {
			return nil, fmt.Errorf("target series %q was not found in the available list", opts.Target)
		}
		last, _ := Canonical(path[len(path)-1])
		if semver.Compare(last, targetCanon) != 0 {
			return nil, fmt.Errorf("target series %q was not found in the available list", opts.Target)
		}
	}

	return path, nil
}
