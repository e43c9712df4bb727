// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogLine is one immutable entry in the run log. Ordering is by Seq,
// the append sequence number, not by Time; subprocess streams can
// carry skewed timestamps.
type LogLine struct {
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Stage string    `json:"stage"`
	Level Level     `json:"level"`
	Text  string    `json:"text"`
}

// Format renders the line the way it is persisted to the log file.
func (l LogLine) Format() string {
	return fmt.Sprintf("%s [%s] %s: %s", l.Time.Format("2006-01-02 15:04:05"), l.Level, l.Stage, l.Text)
}

// Aggregator merges the output of all operations into one ordered
// log. Appends from concurrent subprocess readers are serialized by
// an internal mutex; lines are never dropped or reordered within a
// run.
//
// Consumers either poll with SnapshotFrom (always a consistent prefix
// plus new suffix) or subscribe for live delivery. A slow subscriber
// may miss live lines, since the channel send is non-blocking, but
// can recover the full ordered log from a snapshot at any time.
type Aggregator struct {
	mu     sync.Mutex
	lines  []LogLine
	seq    uint64
	sink   io.Writer
	notify func(LogLine)
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// SetStreamSink attaches a writer that receives each line as it is
// appended. Used to persist the log incrementally to a file.
func (a *Aggregator) SetStreamSink(w io.Writer) {
	a.mu.Lock()
	a.sink = w
	a.mu.Unlock()
}

// setNotify installs the live-subscriber fan-out hook. Engine-internal.
func (a *Aggregator) setNotify(fn func(LogLine)) {
	a.mu.Lock()
	a.notify = fn
	a.mu.Unlock()
}

// Append adds one line to the log and forwards it to the stream sink
// and live subscribers. Delivery happens under the mutex so
// subscribers observe lines in Seq order even when concurrent
// subprocess readers append.
func (a *Aggregator) Append(stage string, level Level, text string) LogLine {
	a.mu.Lock()
	defer a.mu.Unlock()
	line := LogLine{
		Seq:   a.seq,
		Time:  time.Now(),
		Stage: stage,
		Level: level,
		Text:  text,
	}
	a.seq++
	a.lines = append(a.lines, line)
	if a.sink != nil {
		fmt.Fprintln(a.sink, line.Format())
	}
	if a.notify != nil {
		a.notify(line)
	}
	return line
}

// Snapshot returns a copy of the full ordered log.
func (a *Aggregator) Snapshot() []LogLine {
	return a.SnapshotFrom(0)
}

// SnapshotFrom returns a copy of every line with Seq >= seq, so
// pollers can resume from where they left off.
func (a *Aggregator) SnapshotFrom(seq uint64) []LogLine {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq >= uint64(len(a.lines)) {
		return nil
	}
	out := make([]LogLine, len(a.lines)-int(seq))
	copy(out, a.lines[seq:])
	return out
}

// Len returns the number of appended lines.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.lines)
}

// Persist writes the full ordered log to w. Call once, at a point of
// the caller's choosing (typically end of run); incremental streaming
// is covered by SetStreamSink.
func (a *Aggregator) Persist(w io.Writer) error {
	for _, line := range a.Snapshot() {
		if _, err := fmt.Fprintln(w, line.Format()); err != nil {
			return fmt.Errorf("persist log: %w", err)
		}
	}
	return nil
}
