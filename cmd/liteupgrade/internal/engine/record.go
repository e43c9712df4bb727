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
	"time"
)

// Status is the lifecycle state of one stage within a run.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the status name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the name form written by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "pending":
		*s = StatusPending
	case "running":
		*s = StatusRunning
	case "succeeded":
		*s = StatusSucceeded
	case "failed":
		*s = StatusFailed
	case "skipped":
		*s = StatusSkipped
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// StageRecord is the historical outcome of one stage. It is created
// when the stage starts (or is marked skipped) and finalized when the
// stage ends; no record exists for stages the run never reached.
type StageRecord struct {
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	Status         Status         `json:"status"`
	Started        time.Time      `json:"started"`
	Duration       time.Duration  `json:"duration"`

	// ExitCode is the exit code of the failing command, -1 when the
	// failure was not a command or the stage did not fail.
	ExitCode int `json:"exit_code"`

	// Diagnostic is the human-readable failure or warning message.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Warning marks an optional-stage failure that did not end the run.
	Warning bool `json:"warning,omitempty"`
}

// Outcome is the terminal state of a run.
type Outcome int

const (
	// OutcomeSucceeded: every mandatory stage succeeded or was
	// validly skipped.
	OutcomeSucceeded Outcome = iota

	// OutcomeFailed: a mandatory stage failed; later stages were not
	// executed.
	OutcomeFailed

	// OutcomeAborted: the operator cancelled the run at a stage
	// boundary.
	OutcomeAborted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the outcome name.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON accepts the name form written by MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "succeeded":
		*o = OutcomeSucceeded
	case "failed":
		*o = OutcomeFailed
	case "aborted":
		*o = OutcomeAborted
	default:
		return fmt.Errorf("unknown outcome %q", name)
	}
	return nil
}

// Report is the archived result of one completed run. It remains
// inspectable after the run ends regardless of outcome.
type Report struct {
	RunID       string        `json:"run_id"`
	Mode        string        `json:"mode"`
	Outcome     Outcome       `json:"outcome"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Records     []StageRecord `json:"records"`
	Warnings    int           `json:"warnings"`
	FailedStage string        `json:"failed_stage,omitempty"`
	Percent     int           `json:"percent"`
}

// Succeeded reports whether the run reached terminal success.
func (r *Report) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}
