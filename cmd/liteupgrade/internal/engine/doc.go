// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package engine implements the series upgrade orchestrator.

The engine drives an ordered catalog of weighted stages through a
command runner, producing a monotonic 0-100 progress percentage, an
append-ordered log, and a per-stage outcome record. It supports a
dry-run mode that substitutes simulated stand-ins for every operation
that would mutate package state or download artifacts, while keeping
the stage graph and weight accounting identical to a real run.

# Architecture

	┌──────────┐   stages    ┌───────────┐  commands  ┌──────────────┐
	│   plan    │ ──────────> │  Engine   │ ─────────> │ CommandRunner │
	└──────────┘             └───────────┘            └──────────────┘
	                            │      │
	                 ProgressUpdate   LogLine
	                            v      v
	                     subscribers (CLI / API / file sink)

Exactly one run may be active per Engine; Run returns ErrRunActive
immediately when called while another run is in flight. Stages execute
strictly sequentially, as do the operations bound to a stage. The only
concurrency inside a run is the subprocess output reader, which feeds
the Aggregator while the engine blocks waiting for the command to
finish.

# Failure Policy

A failing operation never aborts the process. On a mandatory stage it
ends the run with OutcomeFailed; on an optional (or executed
conditional) stage it is demoted to a warning and the run continues.
Operator cancellation is observed at stage boundaries only, so an
operation that is already executing finishes before the run reports
OutcomeAborted.
*/
package engine
