// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/config"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/api"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/diagnostics"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/history"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/plan"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/process"
	"github.com/linuxliteos/series-upgrade/pkg/logging"
)

// runServe hosts the control API the desktop frontend talks to. The
// server process holds the upgrade lock for its whole lifetime so a
// terminal upgrade cannot start while a frontend is attached.
func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Global
	euid := os.Geteuid()

	addr := listenAddr
	if addr == "" {
		addr = cfg.Server.Listen
	}

	lock := process.NewUpgradeLock("")
	if err := lock.Acquire(); err != nil {
		log.Fatalf("%v", err)
	}
	defer lock.Release()

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = logging.LogPathFor(euid)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Printf("%v; using info", err)
	}
	logger := logging.New(logging.Config{Level: level, LogFile: logPath, JSON: true})
	defer logger.Close()

	tracer, err := diagnostics.Setup(version, diagnostics.TracePathFor(euid))
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		tracer, _ = diagnostics.Setup(version, "")
	}
	defer tracer.Shutdown(context.Background())

	store, err := history.Open(cfg.History.Dir)
	if err != nil {
		logger.Warn("history store unavailable", "dir", cfg.History.Dir, "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	runLog, err := os.OpenFile(runLogPath(euid), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	engOpts := []engine.Option{engine.WithLogger(logger.Slog())}
	if err != nil {
		logger.Warn("run log unavailable", "error", err)
	} else {
		defer runLog.Close()
		engOpts = append(engOpts, engine.WithLogSink(runLog))
	}

	server := api.NewServer(api.Config{
		Engine:  engine.New(engOpts...),
		History: store,
		Logger:  logger.Slog(),
		BuildPlan: func(dryRun bool) ([]engine.Stage, error) {
			return plan.Build(plan.Options{
				DryRun:       dryRun,
				ReenablePPAs: cfg.Upgrade.ReenablePPAs,
				AptRoot:      cfg.Upgrade.AptRoot,
				CacheDir:     cfg.Upgrade.CacheDir,
				BundleURL:    cfg.Upgrade.BundleURL,
			})
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
