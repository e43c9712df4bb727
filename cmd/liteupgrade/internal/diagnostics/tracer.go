// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diagnostics wires OpenTelemetry tracing into the upgrade
// tool. An upgrade host is typically offline or mid-upgrade, so spans
// are written to a local JSON file instead of a network collector;
// support can ask the user to attach the file to a report.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const serviceName = "lite-upgrade"

// DefaultTracePath is where span JSON lands when the tool runs as
// root. TracePathFor picks a world-writable fallback otherwise.
const DefaultTracePath = "/var/log/ll-series-upgrade-trace.json"

// TracePathFor returns the trace file location for the given
// effective UID.
func TracePathFor(euid int) string {
	if euid == 0 {
		return DefaultTracePath
	}
	return filepath.Join(os.TempDir(), "ll-series-upgrade-trace.json")
}

// Tracer owns the installed provider and the backing trace file.
type Tracer struct {
	provider *sdktrace.TracerProvider
	file     io.Closer
	path     string

	closeOnce sync.Once
	closeErr  error
}

// Setup installs a global TracerProvider that appends span JSON to
// path. Passing an empty path installs nothing and returns a Tracer
// whose Shutdown is a no-op, so callers do not need to branch.
func Setup(version, path string) (*Tracer, error) {
	if path == "" {
		return &Tracer{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
			attribute.Int("process.euid", os.Geteuid()),
		),
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, file: f, path: path}, nil
}

// Path returns the trace file location, or empty when tracing is off.
func (t *Tracer) Path() string {
	return t.path
}

// Shutdown flushes pending spans and closes the trace file. Safe to
// call more than once.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.closeOnce.Do(func() {
		if t.provider != nil {
			t.closeErr = t.provider.Shutdown(ctx)
		}
		if t.file != nil {
			if err := t.file.Close(); err != nil && t.closeErr == nil {
				t.closeErr = err
			}
		}
	})
	return t.closeErr
}
