// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunActive is returned by Run when another run is already in
	// flight. The active run's context is left untouched.
	ErrRunActive = errors.New("an upgrade run is already active")

	// ErrPrivilegeDenied is returned when a mutating or downloading
	// operation is attempted in real mode without root privileges.
	// The operation is refused before its command is started.
	ErrPrivilegeDenied = errors.New("insufficient privilege for package operations (run via pkexec)")

	// ErrCancelled marks a run that was aborted by the operator.
	ErrCancelled = errors.New("upgrade cancelled by operator")

	// ErrEmptyPlan is returned when Run is given no stages.
	ErrEmptyPlan = errors.New("upgrade plan contains no stages")
)

// StageError reports the operation failure that ended or degraded a
// stage. For mandatory stages it is the error that terminated the run;
// for optional stages it is retained on the StageRecord as a warning.
type StageError struct {
	Stage     string
	Operation string
	Err       error
}

// Error returns a human-readable diagnostic.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: operation %q: %v", e.Stage, e.Operation, e.Err)
}

// Unwrap enables errors.Is/errors.As through the chain.
func (e *StageError) Unwrap() error {
	return e.Err
}

// CommandError wraps a command execution failure with exit-code and
// command-line context.
//
// # Example
//
//	var cmdErr *CommandError
//	if errors.As(err, &cmdErr) {
//	    fmt.Println(cmdErr.ExitCode)
//	}
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if the command never ran).
	ExitCode int

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error returns a formatted error message.
func (e *CommandError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NewCommandError creates a CommandError for the given command line.
func NewCommandError(name string, args []string, exitCode int, wrapped error) *CommandError {
	line := name
	if len(args) > 0 {
		line = name + " " + strings.Join(args, " ")
	}
	return &CommandError{Command: line, ExitCode: exitCode, Wrapped: wrapped}
}

// ExitCodeOf extracts the exit code from an error chain.
// Returns -1 when no CommandError is present.
func ExitCodeOf(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}
