// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CommandSpec describes one external command invocation.
type CommandSpec struct {
	// Name is the executable name or absolute path.
	Name string

	// Args are the command arguments.
	Args []string

	// Env holds extra environment variables layered over os.Environ.
	Env map[string]string

	// Dir is the working directory ("" means inherit).
	Dir string
}

// Line returns the command as a single display string.
func (s CommandSpec) Line() string {
	line := s.Name
	for _, a := range s.Args {
		line += " " + a
	}
	return line
}

// CommandRunner executes external commands for the upgrade engine.
//
// # Description
//
// All subprocess execution in the engine goes through this interface
// so tests can substitute a mock and count or script invocations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple
// goroutines.
type CommandRunner interface {
	// Stream executes the command and delivers its combined
	// stdout+stderr output to emit line-by-line as it is produced,
	// not buffered until completion.
	//
	// # Outputs
	//
	//   - int: process exit code (-1 if the command never started)
	//   - error: non-nil only when the command could not be started
	//     or was interrupted; a non-zero exit on its own is reported
	//     through the exit code so the caller decides policy
	Stream(ctx context.Context, spec CommandSpec, emit func(line string)) (int, error)
}

// ExecRunner is the production CommandRunner backed by os/exec.
//
// Stdout and stderr are read by dedicated goroutines feeding the emit
// callback, so long-running package operations surface partial output
// while the engine blocks on completion.
type ExecRunner struct{}

// NewExecRunner creates a runner that executes real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Stream executes the command, forwarding each output line to emit.
func (r *ExecRunner) Stream(ctx context.Context, spec CommandSpec, emit func(line string)) (int, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe for %s: %w", spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe for %s: %w", spec.Name, err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}

	// emit callers serialize appends themselves (the Aggregator holds
	// a mutex), but guard here as well so interleaved stdout/stderr
	// lines stay whole.
	var emitMu sync.Mutex
	safeEmit := func(line string) {
		emitMu.Lock()
		emit(line)
		emitMu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			safeEmit(sc.Text())
		}
		return sc.Err()
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			safeEmit(sc.Text())
		}
		return sc.Err()
	})

	readErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, waitErr
	}
	if readErr != nil {
		return cmd.ProcessState.ExitCode(), readErr
	}
	return 0, nil
}

// MockRunner is a test double for CommandRunner.
//
// Configure the mock by setting StreamFunc before use; calls are
// recorded for verification. If StreamFunc is nil the mock reports
// success without output.
type MockRunner struct {
	// StreamFunc is called when Stream is invoked.
	StreamFunc func(ctx context.Context, spec CommandSpec, emit func(line string)) (int, error)

	// Calls records every invocation in order.
	Calls []CommandSpec

	mu sync.Mutex
}

// Stream delegates to StreamFunc and records the call.
func (m *MockRunner) Stream(ctx context.Context, spec CommandSpec, emit func(line string)) (int, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, spec)
	m.mu.Unlock()
	if m.StreamFunc == nil {
		return 0, nil
	}
	return m.StreamFunc(ctx, spec, emit)
}

// CallCount returns the number of recorded invocations.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears all recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Compile-time interface compliance checks.
var (
	_ CommandRunner = (*ExecRunner)(nil)
	_ CommandRunner = (*MockRunner)(nil)
)
