// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"encoding/json"
	"fmt"
)

// Classification decides the failure policy of a stage.
type Classification int

const (
	// Mandatory stages end the run with OutcomeFailed when an
	// operation fails. Later stages are not executed.
	Mandatory Classification = iota

	// Optional stages log a warning on failure and let the run
	// continue; a run can still succeed with failed optional stages.
	Optional

	// Conditional stages carry a predicate evaluated once at run
	// start. When false the stage is skipped and its weight is
	// redistributed over the remaining stages. When it does run, a
	// failure is treated like an optional stage's.
	Conditional
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case Mandatory:
		return "mandatory"
	case Optional:
		return "optional"
	case Conditional:
		return "conditional"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the classification name so reports and the plan
// endpoint stay readable without a decoder table.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts the name form written by MarshalJSON.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "mandatory":
		*c = Mandatory
	case "optional":
		*c = Optional
	case "conditional":
		*c = Conditional
	default:
		return fmt.Errorf("unknown classification %q", s)
	}
	return nil
}

// Predicate reports whether a conditional stage should run. Evaluated
// exactly once, when the run starts.
type Predicate func() bool

// Stage is one named, weighted unit of the upgrade plan. The catalog
// of stages is constructed once at process start and is read-only for
// the life of the process.
type Stage struct {
	// Name must be unique within a plan.
	Name string

	// Weight is the stage's positive relative share of total work.
	// Shares are normalized to a 0-100 scale at run start.
	Weight int

	// Class selects the failure policy.
	Class Classification

	// When gates a Conditional stage. Ignored for other classes.
	When Predicate

	// Operations execute in order; the first failure ends the stage.
	Operations []Operation

	// Env holds extra environment variables for every command the
	// stage's operations run.
	Env map[string]string
}
