// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
)

// metrics collects run-level telemetry. Each Server carries its own
// registry so tests never trip duplicate registration.
type metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	running       prometheus.Gauge
	progress      prometheus.Gauge
	stageDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lite_upgrade",
		Name:      "runs_total",
		Help:      "Completed upgrade runs by outcome and mode.",
	}, []string{"outcome", "mode"})

	m.running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lite_upgrade",
		Name:      "running",
		Help:      "1 while an upgrade run is active.",
	})

	m.progress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lite_upgrade",
		Name:      "progress_percent",
		Help:      "Monotonic progress of the active or last run.",
	})

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lite_upgrade",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of executed stages.",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
	}, []string{"stage", "status"})

	m.registry.MustRegister(m.runsTotal, m.running, m.progress, m.stageDuration)
	return m
}

// observeReport records a finished run.
func (m *metrics) observeReport(report *engine.Report) {
	m.runsTotal.WithLabelValues(report.Outcome.String(), report.Mode).Inc()
	for _, rec := range report.Records {
		if rec.Status == engine.StatusSkipped || rec.Status == engine.StatusPending {
			continue
		}
		m.stageDuration.WithLabelValues(rec.Name, rec.Status.String()).Observe(rec.Duration.Seconds())
	}
}
