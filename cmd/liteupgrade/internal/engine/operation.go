// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
)

// Mode selects between a real upgrade and a dry-run preview.
type Mode int

const (
	// ModeReal executes every operation's real action.
	ModeReal Mode = iota

	// ModeDryRun substitutes simulated stand-ins for every operation
	// that would mutate system state or perform network downloads.
	ModeDryRun
)

// String returns "real" or "dry-run".
func (m Mode) String() string {
	if m == ModeDryRun {
		return "dry-run"
	}
	return "real"
}

// Kind classifies what an operation does to the system. The kind
// decides dry-run routing and the privilege check.
type Kind int

const (
	// KindQuery reads state only. Queries run for real even under
	// dry-run so simulated output has realistic context.
	KindQuery Kind = iota

	// KindMutate changes package state or system files.
	KindMutate

	// KindDownload performs network fetches.
	KindDownload

	// KindConfigure rewrites configuration or branding files.
	KindConfigure
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutate:
		return "mutate"
	case KindDownload:
		return "download"
	case KindConfigure:
		return "configure"
	default:
		return "unknown"
	}
}

// Action is one executable unit of work. Actions report failure via
// the returned error; they must not terminate the process.
type Action func(ctx context.Context, ec *ExecContext) error

// Operation is a single unit of stage work carrying both a real
// action and a simulated stand-in. The engine selects one by mode at
// call time; there is no runtime type inspection.
//
// Invariant: Simulate must never mutate the filesystem or perform
// network writes. It may read state to produce realistic log output.
// A nil Simulate yields a generic "would run" preview line.
type Operation struct {
	Name     string
	Kind     Kind
	Run      Action
	Simulate Action
}

// ExecContext is handed to actions and provides log emission and
// command execution bound to the current stage and mode.
type ExecContext struct {
	mode   Mode
	stage  string
	runner CommandRunner
	agg    *Aggregator
	env    map[string]string
}

// Mode returns the active run mode.
func (ec *ExecContext) Mode() Mode {
	return ec.mode
}

// DryRun reports whether the run is a dry-run.
func (ec *ExecContext) DryRun() bool {
	return ec.mode == ModeDryRun
}

// Emit appends an info line to the run log.
func (ec *ExecContext) Emit(text string) {
	ec.agg.Append(ec.stage, LevelInfo, text)
}

// Emitf appends a formatted info line to the run log.
func (ec *ExecContext) Emitf(format string, args ...any) {
	ec.Emit(fmt.Sprintf(format, args...))
}

// Warnf appends a formatted warning line to the run log.
func (ec *ExecContext) Warnf(format string, args ...any) {
	ec.agg.Append(ec.stage, LevelWarning, fmt.Sprintf(format, args...))
}

// Command runs one external command through the engine's runner,
// streaming its combined output into the run log. A non-zero exit
// status is returned as a *CommandError.
func (ec *ExecContext) Command(ctx context.Context, name string, args ...string) error {
	spec := CommandSpec{Name: name, Args: args, Env: ec.env}
	ec.Emitf("RUN: %s", spec.Line())
	rc, err := ec.runner.Stream(ctx, spec, ec.Emit)
	if err != nil {
		return NewCommandError(name, args, rc, err)
	}
	if rc != 0 {
		return NewCommandError(name, args, rc, nil)
	}
	return nil
}
