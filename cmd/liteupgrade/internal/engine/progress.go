// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"math"
)

// ProgressUpdate is emitted whenever the reported percentage or the
// active stage changes.
type ProgressUpdate struct {
	// Percent is the monotonic 0-100 run percentage.
	Percent int `json:"percent"`

	// Stage is the stage the update relates to.
	Stage string `json:"stage"`

	// Message is a short human-readable status label.
	Message string `json:"message"`
}

// resolveShares converts stage weights into percentage shares,
// evaluating conditional predicates exactly once. Skipped stages get
// a zero share; their weight is redistributed proportionally over the
// remaining stages so the shares of runnable stages sum to exactly
// 100. Computed once, immutably, before the run starts.
func resolveShares(stages []Stage) (shares []float64, skipped []bool, err error) {
	if len(stages) == 0 {
		return nil, nil, ErrEmptyPlan
	}
	shares = make([]float64, len(stages))
	skipped = make([]bool, len(stages))

	active := 0
	for i, st := range stages {
		if st.Weight <= 0 {
			return nil, nil, fmt.Errorf("stage %q: weight must be positive, got %d", st.Name, st.Weight)
		}
		if st.Class == Conditional && st.When != nil && !st.When() {
			skipped[i] = true
			continue
		}
		active += st.Weight
	}
	if active == 0 {
		return nil, nil, fmt.Errorf("all %d stages are skipped", len(stages))
	}
	for i, st := range stages {
		if skipped[i] {
			continue
		}
		shares[i] = float64(st.Weight) * 100 / float64(active)
	}
	return shares, skipped, nil
}

// progressTracker accumulates completed weight shares into the
// reported percentage. Rounding is floor-based so 100 is never shown
// while work remains, and the last reported value is a lower bound so
// the percentage is non-decreasing even across float noise.
type progressTracker struct {
	done    float64
	partial float64
	last    int
}

// stagePartial records sub-stage completion: completed operations of
// the running stage contribute an equal fraction of its share.
func (p *progressTracker) stagePartial(share float64, completedOps, totalOps int) {
	if totalOps <= 0 {
		return
	}
	p.partial = share * float64(completedOps) / float64(totalOps)
}

// stageDone banks the full share of a finished stage. Failed optional
// stages still count toward progress: their work slot is resolved
// even though the result is a warning.
func (p *progressTracker) stageDone(share float64) {
	p.done += share
	p.partial = 0
}

// percent returns the current floor-rounded, monotonic percentage.
func (p *progressTracker) percent() int {
	pct := int(math.Floor(p.done + p.partial))
	if pct > 100 {
		pct = 100
	}
	if pct < p.last {
		return p.last
	}
	p.last = pct
	return pct
}

// complete snaps the percentage to exactly 100 for a terminal success
// state, absorbing float accumulation error.
func (p *progressTracker) complete() int {
	p.last = 100
	return 100
}
