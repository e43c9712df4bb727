// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(opts ...Option) *Engine {
	base := []Option{
		WithRunner(&MockRunner{}),
		WithEuidFunc(func() int { return 0 }),
	}
	return New(append(base, opts...)...)
}

func okOp(name string) Operation {
	return Operation{
		Name: name,
		Kind: KindMutate,
		Run: func(ctx context.Context, ec *ExecContext) error {
			ec.Emit(name + " done")
			return nil
		},
	}
}

func failOp(name string) Operation {
	return Operation{
		Name: name,
		Kind: KindMutate,
		Run: func(ctx context.Context, ec *ExecContext) error {
			return errors.New(name + " exploded")
		},
	}
}

func threeStagePlan(middle Operation) []Stage {
	return []Stage{
		{Name: "Stage A", Weight: 50, Class: Mandatory, Operations: []Operation{okOp("a")}},
		{Name: "Stage B", Weight: 30, Class: Optional, Operations: []Operation{middle}},
		{Name: "Stage C", Weight: 20, Class: Mandatory, Operations: []Operation{okOp("c")}},
	}
}

func collectPercents(t *testing.T, ch <-chan ProgressUpdate) []int {
	t.Helper()
	var out []int
	for {
		select {
		case u := <-ch:
			out = append(out, u.Percent)
		default:
			return out
		}
	}
}

func TestOptionalFailureContinues(t *testing.T) {
	e := newTestEngine()
	ch, cancel := e.SubscribeProgress(128)
	defer cancel()

	report, err := e.Run(context.Background(), threeStagePlan(failOp("b")), ModeReal)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.Equal(t, 100, report.Percent)
	assert.Equal(t, 1, report.Warnings)

	require.Len(t, report.Records, 3)
	assert.Equal(t, StatusSucceeded, report.Records[0].Status)
	assert.Equal(t, StatusFailed, report.Records[1].Status)
	assert.True(t, report.Records[1].Warning)
	assert.Contains(t, report.Records[1].Diagnostic, "exploded")
	assert.Equal(t, StatusSucceeded, report.Records[2].Status)

	percents := collectPercents(t, ch)
	assert.Contains(t, percents, 50)
	assert.Contains(t, percents, 80)
	assert.Contains(t, percents, 100)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress must be non-decreasing")
	}
}

func TestMandatoryFailureHaltsRun(t *testing.T) {
	e := newTestEngine()
	ch, cancel := e.SubscribeProgress(128)
	defer cancel()

	plan := []Stage{
		{Name: "Stage A", Weight: 50, Class: Mandatory, Operations: []Operation{failOp("a")}},
		{Name: "Stage B", Weight: 30, Class: Optional, Operations: []Operation{okOp("b")}},
		{Name: "Stage C", Weight: 20, Class: Mandatory, Operations: []Operation{okOp("c")}},
	}
	report, err := e.Run(context.Background(), plan, ModeReal)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, "Stage A", report.FailedStage)

	// No StageRecord may exist for any stage after the failing one.
	require.Len(t, report.Records, 1)
	assert.Equal(t, "Stage A", report.Records[0].Name)
	assert.Equal(t, StatusFailed, report.Records[0].Status)
	assert.False(t, report.Records[0].Warning)

	for _, p := range collectPercents(t, ch) {
		assert.Less(t, p, 100, "a failed run must never report 100%%")
	}
}

func TestRunRejectsConcurrentStart(t *testing.T) {
	e := newTestEngine()

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := Operation{
		Name: "block",
		Kind: KindMutate,
		Run: func(ctx context.Context, ec *ExecContext) error {
			close(started)
			<-release
			return nil
		},
	}
	plan := []Stage{{Name: "Only", Weight: 100, Class: Mandatory, Operations: []Operation{blocking}}}

	done := make(chan *Report, 1)
	go func() {
		r, _ := e.Run(context.Background(), plan, ModeReal)
		done <- r
	}()
	<-started

	linesBefore := len(e.SnapshotLog())
	_, err := e.Run(context.Background(), plan, ModeReal)
	require.ErrorIs(t, err, ErrRunActive)

	// The rejected call must leave the in-flight run untouched.
	assert.Equal(t, linesBefore, len(e.SnapshotLog()))
	assert.True(t, e.Running())

	close(release)
	report := <-done
	assert.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.False(t, e.Running())
}

func TestSnapshotLogSurvivesRunCompletion(t *testing.T) {
	e := newTestEngine()
	report, err := e.Run(context.Background(), threeStagePlan(okOp("b")), ModeReal)
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.False(t, e.Running())

	lines := e.SnapshotLog()
	require.NotEmpty(t, lines, "the finished run's log must stay snapshotable")
	var joined string
	for _, l := range lines {
		joined += l.Text + "\n"
	}
	assert.Contains(t, joined, "a done")
	assert.Contains(t, joined, "All stages complete")

	// A later run replaces the retained log.
	_, err = e.Run(context.Background(), threeStagePlan(okOp("b2")), ModeReal)
	require.NoError(t, err)
	var second string
	for _, l := range e.SnapshotLog() {
		second += l.Text + "\n"
	}
	assert.Contains(t, second, "b2 done")
}

func TestUnsubscribeClosesChannels(t *testing.T) {
	e := newTestEngine()

	logs, unsubLogs := e.SubscribeLogs(8)
	prog, unsubProg := e.SubscribeProgress(8)
	unsubLogs()
	unsubLogs() // second call is a no-op
	unsubProg()

	_, ok := <-logs
	assert.False(t, ok, "unsubscribed log channel must be closed")
	_, ok2 := <-prog
	assert.False(t, ok2, "unsubscribed progress channel must be closed")

	// A ranging consumer terminates once its subscription ends.
	lines, unsub := e.SubscribeLogs(64)
	consumed := make(chan int, 1)
	go func() {
		n := 0
		for range lines {
			n++
		}
		consumed <- n
	}()

	_, err := e.Run(context.Background(), threeStagePlan(okOp("b")), ModeReal)
	require.NoError(t, err)
	unsub()

	select {
	case n := <-consumed:
		assert.Greater(t, n, 0)
	case <-time.After(5 * time.Second):
		t.Fatal("log consumer still blocked after unsubscribe")
	}
}

func TestStartReportsConflictBeforeReturning(t *testing.T) {
	e := newTestEngine()

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := Operation{
		Name: "block",
		Kind: KindMutate,
		Run: func(ctx context.Context, ec *ExecContext) error {
			close(started)
			<-release
			return nil
		},
	}
	plan := []Stage{{Name: "Only", Weight: 100, Class: Mandatory, Operations: []Operation{blocking}}}

	done, err := e.Start(context.Background(), plan, ModeReal)
	require.NoError(t, err)
	<-started

	// The slot is claimed before Start returns, so a second caller is
	// refused synchronously.
	_, err = e.Start(context.Background(), plan, ModeReal)
	require.ErrorIs(t, err, ErrRunActive)
	_, err = e.Run(context.Background(), plan, ModeReal)
	require.ErrorIs(t, err, ErrRunActive)

	close(release)
	report := <-done
	assert.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.False(t, e.Running())
}

func TestDryRunNeverInvokesRealMutations(t *testing.T) {
	var realMutations, realQueries atomic.Int32

	plan := []Stage{
		{
			Name: "Mixed", Weight: 100, Class: Mandatory,
			Operations: []Operation{
				{
					Name: "inspect", Kind: KindQuery,
					Run: func(ctx context.Context, ec *ExecContext) error {
						realQueries.Add(1)
						return nil
					},
				},
				{
					Name: "rewrite sources", Kind: KindMutate,
					Run: func(ctx context.Context, ec *ExecContext) error {
						realMutations.Add(1)
						return nil
					},
					Simulate: func(ctx context.Context, ec *ExecContext) error {
						ec.Emit("[dry-run] Would rewrite sources")
						return nil
					},
				},
				{
					Name: "fetch bundle", Kind: KindDownload,
					Run: func(ctx context.Context, ec *ExecContext) error {
						realMutations.Add(1)
						return nil
					},
				},
			},
		},
	}

	// Dry-run must not require privilege either.
	e := newTestEngine(WithEuidFunc(func() int { return 1000 }))
	report, err := e.Run(context.Background(), plan, ModeDryRun)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.Equal(t, int32(0), realMutations.Load(), "dry-run invoked a real mutating action")
	assert.Equal(t, int32(1), realQueries.Load(), "read-only queries still run under dry-run")
	assert.Equal(t, 100, report.Percent)
}

func TestConditionalSkipRedistributesWeight(t *testing.T) {
	plan := []Stage{
		{Name: "A", Weight: 50, Class: Mandatory, Operations: []Operation{okOp("a")}},
		{Name: "B", Weight: 30, Class: Mandatory, Operations: []Operation{okOp("b")}},
		{Name: "C", Weight: 20, Class: Conditional, When: func() bool { return false },
			Operations: []Operation{okOp("c")}},
	}

	shares, skipped, err := resolveShares(plan)
	require.NoError(t, err)
	assert.True(t, skipped[2])
	assert.Zero(t, shares[2])
	assert.InDelta(t, 62.5, shares[0], 0.001)
	assert.InDelta(t, 37.5, shares[1], 0.001)

	var sum float64
	for _, s := range shares {
		sum += s
	}
	assert.InDelta(t, 100.0, sum, 0.0001)

	e := newTestEngine()
	report, err := e.Run(context.Background(), plan, ModeReal)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.Equal(t, 100, report.Percent)

	require.Len(t, report.Records, 3)
	assert.Equal(t, StatusSkipped, report.Records[2].Status)
}

func TestCancelObservedAtStageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel fires while stage B's operation is executing; B still
	// finishes, and the run aborts before C starts.
	cancelling := Operation{
		Name: "b",
		Kind: KindMutate,
		Run: func(opCtx context.Context, ec *ExecContext) error {
			cancel()
			return nil
		},
	}
	plan := []Stage{
		{Name: "Stage A", Weight: 50, Class: Mandatory, Operations: []Operation{okOp("a")}},
		{Name: "Stage B", Weight: 30, Class: Mandatory, Operations: []Operation{cancelling}},
		{Name: "Stage C", Weight: 20, Class: Mandatory, Operations: []Operation{okOp("c")}},
	}

	e := newTestEngine()
	report, err := e.Run(ctx, plan, ModeReal)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAborted, report.Outcome)
	require.Len(t, report.Records, 2)
	assert.Equal(t, StatusSucceeded, report.Records[0].Status)
	assert.Equal(t, StatusSucceeded, report.Records[1].Status)
	assert.Less(t, report.Percent, 100)
}

func TestRealModeWithoutPrivilegeFailsFast(t *testing.T) {
	var invoked atomic.Int32
	plan := []Stage{
		{
			Name: "Mutate", Weight: 100, Class: Mandatory,
			Operations: []Operation{{
				Name: "apt-get update", Kind: KindMutate,
				Run: func(ctx context.Context, ec *ExecContext) error {
					invoked.Add(1)
					return nil
				},
			}},
		},
	}

	e := newTestEngine(WithEuidFunc(func() int { return 1000 }))
	report, err := e.Run(context.Background(), plan, ModeReal)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, int32(0), invoked.Load(), "real action must not run without privilege")
	assert.Contains(t, report.Records[0].Diagnostic, "insufficient privilege")
}

func TestSubStageProgressPerOperation(t *testing.T) {
	stageOps := []Operation{okOp("one"), okOp("two"), okOp("three"), okOp("four")}
	plan := []Stage{{Name: "Big", Weight: 100, Class: Mandatory, Operations: stageOps}}

	e := newTestEngine()
	ch, unsub := e.SubscribeProgress(128)
	defer unsub()

	report, err := e.Run(context.Background(), plan, ModeReal)
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, report.Outcome)

	percents := collectPercents(t, ch)
	assert.Contains(t, percents, 25)
	assert.Contains(t, percents, 50)
	assert.Contains(t, percents, 75)
	assert.Contains(t, percents, 100)
}

func TestRunRejectsEmptyAndInvalidPlans(t *testing.T) {
	e := newTestEngine()

	_, err := e.Run(context.Background(), nil, ModeReal)
	assert.ErrorIs(t, err, ErrEmptyPlan)

	_, err = e.Run(context.Background(), []Stage{{Name: "bad", Weight: 0, Class: Mandatory}}, ModeReal)
	assert.Error(t, err)
	assert.False(t, e.Running())
}

func TestStageErrorCarriesExitCode(t *testing.T) {
	plan := []Stage{{
		Name: "Update", Weight: 100, Class: Mandatory,
		Operations: []Operation{{
			Name: "apt-get update", Kind: KindMutate,
			Run: func(ctx context.Context, ec *ExecContext) error {
				return NewCommandError("apt-get", []string{"update"}, 100, nil)
			},
		}},
	}}

	e := newTestEngine()
	report, err := e.Run(context.Background(), plan, ModeReal)
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	assert.Equal(t, 100, report.Records[0].ExitCode)
	assert.Contains(t, report.Records[0].Diagnostic, "exit 100")
}

func TestReportTimings(t *testing.T) {
	slow := Operation{
		Name: "sleepy",
		Kind: KindMutate,
		Run: func(ctx context.Context, ec *ExecContext) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		},
	}
	plan := []Stage{{Name: "S", Weight: 100, Class: Mandatory, Operations: []Operation{slow}}}

	e := newTestEngine()
	report, err := e.Run(context.Background(), plan, ModeReal)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Records[0].Duration, 10*time.Millisecond)
	assert.GreaterOrEqual(t, report.Duration, report.Records[0].Duration)
	assert.NotEmpty(t, report.RunID)
}
