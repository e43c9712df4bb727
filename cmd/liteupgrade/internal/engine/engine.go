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
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const engineStateIdle, engineStateRunning int32 = 0, 1

// RunContext is the mutable state of exactly one in-progress upgrade
// attempt. It is owned exclusively by the engine goroutine executing
// Run; external consumers read it only through the engine's snapshot
// accessors.
type RunContext struct {
	ID      string
	Mode    Mode
	Started time.Time
	Log     *Aggregator

	records []StageRecord
	tracker progressTracker
}

// Engine is the upgrade state machine. At most one run may be active
// per engine; a second Run call while one is in flight fails
// immediately with ErrRunActive rather than queueing.
type Engine struct {
	runner  CommandRunner
	logger  *slog.Logger
	geteuid func() int
	sink    io.Writer
	tracer  trace.Tracer

	state atomic.Int32

	mu       sync.Mutex
	current  *RunContext
	last     *Report
	lastLog  *Aggregator
	logSubs  map[uint64]chan LogLine
	progSubs map[uint64]chan ProgressUpdate
	nextSub  uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner sets the command runner (default: ExecRunner).
func WithRunner(r CommandRunner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLogger sets the structured logger for engine-level events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLogSink attaches a writer that receives run log lines
// incrementally (typically the persisted log file).
func WithLogSink(w io.Writer) Option {
	return func(e *Engine) { e.sink = w }
}

// WithEuidFunc overrides the effective-uid lookup used by the
// privilege precondition check. Tests use this to simulate root.
func WithEuidFunc(fn func() int) Option {
	return func(e *Engine) { e.geteuid = fn }
}

// New creates an idle engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		runner:   NewExecRunner(),
		logger:   slog.Default(),
		geteuid:  os.Geteuid,
		tracer:   otel.Tracer("series-upgrade/engine"),
		logSubs:  map[uint64]chan LogLine{},
		progSubs: map[uint64]chan ProgressUpdate{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running reports whether a run is currently active.
func (e *Engine) Running() bool {
	return e.state.Load() == engineStateRunning
}

// LastReport returns the report of the most recently finished run, or
// nil if none has completed yet.
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// SnapshotLog returns the ordered log of the active run, or of the
// last finished run when idle.
func (e *Engine) SnapshotLog() []LogLine {
	e.mu.Lock()
	agg := e.lastLog
	if e.current != nil {
		agg = e.current.Log
	}
	e.mu.Unlock()
	if agg == nil {
		return nil
	}
	return agg.Snapshot()
}

// SubscribeLogs registers a live log consumer. Delivery to a full
// channel is dropped; use SnapshotLog to recover the full record.
// Unsubscribing closes the channel, so a ranging consumer terminates.
// The returned function is safe to call more than once.
func (e *Engine) SubscribeLogs(buf int) (<-chan LogLine, func()) {
	ch := make(chan LogLine, buf)
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.logSubs[id] = ch
	e.mu.Unlock()
	return ch, func() {
		// Fan-out sends hold the same mutex, so closing here cannot
		// race a send on this channel.
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.logSubs[id]; ok {
			delete(e.logSubs, id)
			close(ch)
		}
	}
}

// SubscribeProgress registers a live progress consumer. Unsubscribing
// closes the channel; the returned function is safe to call more than
// once.
func (e *Engine) SubscribeProgress(buf int) (<-chan ProgressUpdate, func()) {
	ch := make(chan ProgressUpdate, buf)
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.progSubs[id] = ch
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.progSubs[id]; ok {
			delete(e.progSubs, id)
			close(ch)
		}
	}
}

func (e *Engine) fanoutLog(line LogLine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.logSubs {
		select {
		case ch <- line:
		default:
		}
	}
}

func (e *Engine) publishProgress(u ProgressUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.progSubs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Run executes the plan in order and blocks until the run reaches a
// terminal state. The returned error is non-nil only for refusals
// (ErrRunActive, invalid plan); execution failures are reported
// through Report.Outcome so the caller decides presentation.
//
// Cancellation of ctx is observed at stage boundaries: the operation
// currently executing finishes first, then the run ends with
// OutcomeAborted. Stages after the boundary keep status pending and
// get no StageRecord.
func (e *Engine) Run(ctx context.Context, plan []Stage, mode Mode) (*Report, error) {
	done, err := e.Start(ctx, plan, mode)
	if err != nil {
		return nil, err
	}
	return <-done, nil
}

// Start claims the single-run slot and begins executing the plan in
// the background. Refusals (ErrRunActive, invalid plan) are returned
// synchronously, before any caller could observe the engine as
// running; the report arrives on the returned channel once the run
// reaches a terminal state.
func (e *Engine) Start(ctx context.Context, plan []Stage, mode Mode) (<-chan *Report, error) {
	shares, skipped, err := resolveShares(plan)
	if err != nil {
		return nil, err
	}

	if !e.state.CompareAndSwap(engineStateIdle, engineStateRunning) {
		return nil, ErrRunActive
	}

	done := make(chan *Report, 1)
	go func() {
		done <- e.execute(ctx, plan, mode, shares, skipped)
	}()
	return done, nil
}

func (e *Engine) execute(ctx context.Context, plan []Stage, mode Mode, shares []float64, skipped []bool) *Report {
	defer e.state.Store(engineStateIdle)

	rc := &RunContext{
		ID:      uuid.NewString(),
		Mode:    mode,
		Started: time.Now(),
		Log:     NewAggregator(),
	}
	rc.Log.setNotify(e.fanoutLog)
	if e.sink != nil {
		rc.Log.SetStreamSink(e.sink)
	}
	e.mu.Lock()
	e.current = rc
	e.mu.Unlock()

	runCtx, span := e.tracer.Start(ctx, "upgrade.run",
		trace.WithAttributes(
			attribute.String("run.id", rc.ID),
			attribute.String("run.mode", mode.String()),
		))
	defer span.End()

	e.logger.Info("upgrade run started", "run_id", rc.ID, "mode", mode.String(), "stages", len(plan))
	rc.Log.Append("run", LevelInfo, fmt.Sprintf("Starting series upgrade (%s mode, %d stages)", mode, len(plan)))

	outcome := OutcomeSucceeded
	failedStage := ""

walk:
	for i, st := range plan {
		// Cancellation is only honored here, between stages, so a
		// package-database mutation is never interrupted mid-flight.
		select {
		case <-runCtx.Done():
			outcome = OutcomeAborted
			rc.Log.Append("run", LevelWarning, ErrCancelled.Error())
			break walk
		default:
		}

		if skipped[i] {
			rc.records = append(rc.records, StageRecord{
				Name:           st.Name,
				Classification: st.Class,
				Status:         StatusSkipped,
				Started:        time.Now(),
				ExitCode:       -1,
			})
			rc.Log.Append(st.Name, LevelInfo, "Skipped (condition not met)")
			continue
		}

		rec := e.runStage(runCtx, rc, &plan[i], shares[i])
		rc.records = append(rc.records, rec)

		if rec.Status == StatusFailed && !rec.Warning {
			outcome = OutcomeFailed
			failedStage = st.Name
			break walk
		}
	}

	percent := rc.tracker.percent()
	if outcome == OutcomeSucceeded {
		percent = rc.tracker.complete()
		e.publishProgress(ProgressUpdate{Percent: percent, Stage: "run", Message: "Upgrade complete"})
		rc.Log.Append("run", LevelInfo, "All stages complete")
	} else {
		rc.Log.Append("run", LevelError, fmt.Sprintf("Run ended: %s", outcome))
		span.SetStatus(codes.Error, outcome.String())
	}

	report := &Report{
		RunID:       rc.ID,
		Mode:        mode.String(),
		Outcome:     outcome,
		Started:     rc.Started,
		Duration:    time.Since(rc.Started),
		Records:     rc.records,
		FailedStage: failedStage,
		Percent:     percent,
	}
	for _, r := range rc.records {
		if r.Warning {
			report.Warnings++
		}
	}

	// The aggregator outlives the run so SnapshotLog keeps serving the
	// finished run's lines until the next one starts.
	e.mu.Lock()
	e.last = report
	e.lastLog = rc.Log
	e.current = nil
	e.mu.Unlock()

	e.logger.Info("upgrade run finished",
		"run_id", rc.ID, "outcome", outcome.String(),
		"percent", percent, "warnings", report.Warnings)
	return report
}

// runStage executes every operation bound to the stage in order and
// returns the finalized record. The first operation failure ends the
// stage; policy escalation is the caller's concern.
func (e *Engine) runStage(ctx context.Context, rc *RunContext, st *Stage, share float64) StageRecord {
	rec := StageRecord{
		Name:           st.Name,
		Classification: st.Class,
		Status:         StatusRunning,
		Started:        time.Now(),
		ExitCode:       -1,
	}

	stageCtx, span := e.tracer.Start(ctx, "upgrade.stage",
		trace.WithAttributes(attribute.String("stage.name", st.Name)))
	defer span.End()

	rc.Log.Append(st.Name, LevelInfo, fmt.Sprintf("=== %s ===", st.Name))
	e.publishProgress(ProgressUpdate{
		Percent: rc.tracker.percent(),
		Stage:   st.Name,
		Message: "Starting " + st.Name,
	})

	ec := &ExecContext{
		mode:   rc.Mode,
		stage:  st.Name,
		runner: e.runner,
		agg:    rc.Log,
		env:    st.Env,
	}

	var failure error
	for i := range st.Operations {
		out := e.executeOperation(stageCtx, &st.Operations[i], ec)
		if out.Failed {
			failure = out.Err
			rec.ExitCode = out.ExitCode
			break
		}
		rc.tracker.stagePartial(share, i+1, len(st.Operations))
		e.publishProgress(ProgressUpdate{
			Percent: rc.tracker.percent(),
			Stage:   st.Name,
			Message: st.Operations[i].Name,
		})
	}

	rec.Duration = time.Since(rec.Started)

	if failure == nil {
		rec.Status = StatusSucceeded
		rc.tracker.stageDone(share)
		e.publishProgress(ProgressUpdate{
			Percent: rc.tracker.percent(),
			Stage:   st.Name,
			Message: st.Name + " complete",
		})
		return rec
	}

	rec.Status = StatusFailed
	rec.Diagnostic = failure.Error()
	span.SetStatus(codes.Error, rec.Diagnostic)

	if st.Class == Mandatory {
		rc.Log.Append(st.Name, LevelError, rec.Diagnostic)
		e.logger.Error("mandatory stage failed", "stage", st.Name, "error", failure)
		return rec
	}

	// Optional (or executed conditional) stage: best-effort semantics.
	// The failure is demoted to a warning and its weight still counts
	// toward progress so the bar reaches 100 on overall success.
	rec.Warning = true
	rc.tracker.stageDone(share)
	rc.Log.Append(st.Name, LevelWarning, fmt.Sprintf("Continuing despite failure: %s", rec.Diagnostic))
	e.logger.Warn("optional stage failed", "stage", st.Name, "error", failure)
	e.publishProgress(ProgressUpdate{
		Percent: rc.tracker.percent(),
		Stage:   st.Name,
		Message: st.Name + " failed (continuing)",
	})
	return rec
}

// executeOperation routes one operation by mode and kind, enforcing
// the privilege precondition, and never lets a failure escape as a
// panic or process exit.
func (e *Engine) executeOperation(ctx context.Context, op *Operation, ec *ExecContext) OperationOutcome {
	start := time.Now()

	var err error
	switch {
	case ec.DryRun() && op.Kind != KindQuery:
		// The real action is bypassed entirely; the stand-in may only
		// read state.
		if op.Simulate != nil {
			err = op.Simulate(ctx, ec)
		} else {
			ec.Emitf("[dry-run] Would run: %s", op.Name)
		}
	case !ec.DryRun() && (op.Kind == KindMutate || op.Kind == KindDownload) && e.geteuid() != 0:
		err = fmt.Errorf("%s: %w", op.Name, ErrPrivilegeDenied)
		ec.Warnf("%v", err)
	default:
		err = op.Run(ctx, ec)
	}

	out := OperationOutcome{Duration: time.Since(start), ExitCode: -1}
	if err != nil {
		out.Failed = true
		out.Err = &StageError{Stage: ec.stage, Operation: op.Name, Err: err}
		out.ExitCode = ExitCodeOf(err)
	}
	return out
}

// OperationOutcome is the executor's result for one operation.
type OperationOutcome struct {
	Failed   bool
	ExitCode int
	Duration time.Duration
	Err      error
}
