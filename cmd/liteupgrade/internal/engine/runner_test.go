// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"runtime"
	"sync"
	"testing"
)

func collectLines() (func(string), func() []string) {
	var mu sync.Mutex
	var lines []string
	emit := func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	}
	get := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
	return emit, get
}

func TestExecRunnerStreamsCombinedOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	emit, lines := collectLines()

	r := NewExecRunner()
	rc, err := r.Stream(context.Background(), CommandSpec{
		Name: "sh",
		Args: []string{"-c", "echo out-line; echo err-line 1>&2"},
	}, emit)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if rc != 0 {
		t.Fatalf("expected exit 0, got %d", rc)
	}

	got := lines()
	seen := map[string]bool{}
	for _, l := range got {
		seen[l] = true
	}
	if !seen["out-line"] || !seen["err-line"] {
		t.Errorf("expected both streams captured, got %v", got)
	}
}

func TestExecRunnerReportsExitCodeWithoutError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	emit, _ := collectLines()

	r := NewExecRunner()
	rc, err := r.Stream(context.Background(), CommandSpec{
		Name: "sh",
		Args: []string{"-c", "exit 3"},
	}, emit)
	if err != nil {
		t.Fatalf("a non-zero exit must not be an error at this level: %v", err)
	}
	if rc != 3 {
		t.Errorf("expected exit 3, got %d", rc)
	}
}

func TestExecRunnerStartFailure(t *testing.T) {
	emit, _ := collectLines()

	r := NewExecRunner()
	rc, err := r.Stream(context.Background(), CommandSpec{
		Name: "/nonexistent/lite-upgrade-test-binary",
	}, emit)
	if err == nil {
		t.Fatal("expected a start error for a missing binary")
	}
	if rc != -1 {
		t.Errorf("expected exit -1 for a command that never ran, got %d", rc)
	}
}

func TestExecRunnerInjectsEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	emit, lines := collectLines()

	r := NewExecRunner()
	rc, err := r.Stream(context.Background(), CommandSpec{
		Name: "sh",
		Args: []string{"-c", "echo frontend=$DEBIAN_FRONTEND"},
		Env:  map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	}, emit)
	if err != nil || rc != 0 {
		t.Fatalf("stream: rc=%d err=%v", rc, err)
	}

	got := lines()
	if len(got) != 1 || got[0] != "frontend=noninteractive" {
		t.Errorf("expected injected env in output, got %v", got)
	}
}

func TestMockRunnerRecordsCalls(t *testing.T) {
	m := &MockRunner{
		StreamFunc: func(ctx context.Context, spec CommandSpec, emit func(string)) (int, error) {
			emit("scripted output")
			return 0, nil
		},
	}
	emit, lines := collectLines()

	rc, err := m.Stream(context.Background(), CommandSpec{Name: "apt-get", Args: []string{"update"}}, emit)
	if err != nil || rc != 0 {
		t.Fatalf("mock stream: rc=%d err=%v", rc, err)
	}
	if m.CallCount() != 1 {
		t.Fatalf("expected 1 recorded call, got %d", m.CallCount())
	}
	if m.Calls[0].Line() != "apt-get update" {
		t.Errorf("unexpected recorded call: %q", m.Calls[0].Line())
	}
	if got := lines(); len(got) != 1 || got[0] != "scripted output" {
		t.Errorf("unexpected emitted lines: %v", got)
	}

	m.Reset()
	if m.CallCount() != 0 {
		t.Errorf("expected reset to clear calls")
	}
}
