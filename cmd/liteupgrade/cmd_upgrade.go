// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/config"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/diagnostics"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/history"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/plan"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/process"
	"github.com/linuxliteos/series-upgrade/pkg/logging"
	"github.com/linuxliteos/series-upgrade/pkg/ux"
)

// Exit codes for scripting. 0 success, 1 usage or setup failure,
// 2 upgrade failed, 3 upgrade aborted.
const (
	exitFailed  = 2
	exitAborted = 3
)

func runUpgrade(cmd *cobra.Command, args []string) {
	cfg := config.Global
	euid := os.Geteuid()

	if !dryRun && euid != 0 {
		ux.Error("The real upgrade must run as root. Use sudo, or --dry-run to preview.")
		os.Exit(1)
	}

	mode := engine.ModeReal
	if dryRun {
		mode = engine.ModeDryRun
	}

	if !dryRun {
		ux.WarningBox("Before you continue",
			"The upgrade rewrites apt sources, runs a full Ubuntu dist-upgrade\nand cannot be rolled back. Back up your data first.")
	}
	if !assumeYes && !dryRun {
		if !confirmUpgrade() {
			ux.Info("Upgrade cancelled.")
			return
		}
	}

	// One upgrade at a time, machine-wide.
	lock := process.NewUpgradeLock("")
	if err := lock.Acquire(); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer lock.Release()

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = logging.LogPathFor(euid)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		ux.Warning(err.Error())
	}
	logger := logging.New(logging.Config{Level: level, LogFile: logPath, Quiet: true})
	defer logger.Close()

	tracer, err := diagnostics.Setup(version, diagnostics.TracePathFor(euid))
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		tracer, _ = diagnostics.Setup(version, "")
	}
	defer tracer.Shutdown(context.Background())

	stages, err := plan.Build(plan.Options{
		DryRun:       dryRun,
		ReenablePPAs: reenablePPAs || cfg.Upgrade.ReenablePPAs,
		AptRoot:      cfg.Upgrade.AptRoot,
		CacheDir:     cfg.Upgrade.CacheDir,
		BundleURL:    cfg.Upgrade.BundleURL,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Could not build the upgrade plan: %v", err))
		os.Exit(1)
	}

	// The run log file gets every emitted line as it happens, so a
	// mid-upgrade crash still leaves a readable record.
	runLog, err := os.OpenFile(runLogPath(euid), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		logger.Warn("run log unavailable", "path", runLogPath(euid), "error", err)
	}

	opts := []engine.Option{
		engine.WithLogger(logger.Slog()),
	}
	if runLog != nil {
		defer runLog.Close()
		opts = append(opts, engine.WithLogSink(runLog))
	}
	eng := engine.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openHistory(cfg.History.Dir, logger)
	if store != nil {
		defer store.Close()
	}

	var report *engine.Report
	if noTUI || ux.Plain() {
		report, err = runStreaming(ctx, eng, stages, mode)
	} else {
		report, err = runWithTUI(ctx, eng, stages, mode)
	}
	if err != nil {
		ux.Error(fmt.Sprintf("Upgrade could not start: %v", err))
		os.Exit(1)
	}

	logger.Info("run finished",
		"run_id", report.RunID,
		"outcome", report.Outcome.String(),
		"percent", report.Percent,
		"warnings", report.Warnings,
	)
	if store != nil {
		if err := store.Append(report); err != nil {
			logger.Warn("could not record run in history", "error", err)
		}
	}

	printReport(report)

	switch report.Outcome {
	case engine.OutcomeFailed:
		os.Exit(exitFailed)
	case engine.OutcomeAborted:
		os.Exit(exitAborted)
	}
}

func confirmUpgrade() bool {
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Upgrade this system to Linux Lite series 7?").
			Description("The upgrade changes apt sources, runs a full Ubuntu dist-upgrade\nand cannot be rolled back. Back up your data before continuing.").
			Affirmative("Upgrade").
			Negative("Cancel").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false
	}
	return confirmed
}

// runStreaming drives the run while printing each log line as it
// arrives, with a progress line at every stage transition. Used for
// --no-tui, plain mode, and every dry run under a pipe.
func runStreaming(ctx context.Context, eng *engine.Engine, stages []engine.Stage, mode engine.Mode) (*engine.Report, error) {
	lines, unsubscribe := eng.SubscribeLogs(256)
	defer unsubscribe()
	progress, unsubProgress := eng.SubscribeProgress(64)
	defer unsubProgress()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range lines {
			switch line.Level {
			case engine.LevelWarning:
				ux.Warning(fmt.Sprintf("%s: %s", line.Stage, line.Text))
			case engine.LevelError:
				ux.Error(fmt.Sprintf("%s: %s", line.Stage, line.Text))
			default:
				ux.Info(fmt.Sprintf("%s: %s", line.Stage, line.Text))
			}
		}
	}()
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		last := -1
		for u := range progress {
			if u.Percent == last {
				continue
			}
			last = u.Percent
			ux.Info(fmt.Sprintf("%s %s", ux.ProgressBar(u.Percent, 24), u.Stage))
		}
	}()

	report, err := eng.Run(ctx, stages, mode)
	unsubscribe()
	unsubProgress()
	<-done
	<-progressDone
	return report, err
}

func printReport(report *engine.Report) {
	fmt.Println()
	var succeeded, skipped, failed int
	for _, rec := range report.Records {
		var icon ux.Icon
		detail := ""
		switch rec.Status {
		case engine.StatusSucceeded:
			icon = ux.IconSuccess
			succeeded++
			if rec.Warning {
				icon = ux.IconWarning
				detail = rec.Diagnostic
			}
		case engine.StatusFailed:
			icon = ux.IconError
			failed++
			detail = rec.Diagnostic
		case engine.StatusSkipped:
			icon = ux.IconSkipped
			skipped++
		default:
			icon = ux.IconPending
		}
		ux.StageLine(rec.Name, icon, detail)
	}
	ux.Summary(succeeded, skipped, failed)

	switch report.Outcome {
	case engine.OutcomeSucceeded:
		if report.Mode == engine.ModeDryRun.String() {
			ux.Success("Dry run complete. No changes were made.")
		} else {
			ux.Success("Upgrade complete. Reboot to finish moving to Linux Lite series 7.")
		}
	case engine.OutcomeFailed:
		ux.Error(fmt.Sprintf("Upgrade failed at stage %q. See the log: lite-upgrade log", report.FailedStage))
	case engine.OutcomeAborted:
		ux.Warning("Upgrade aborted at a stage boundary. The system may be partially upgraded; run again to continue.")
	}
}

// runLogPath is where the raw emitted run lines land, separate from
// the structured JSON log so each stays parseable on its own.
func runLogPath(euid int) string {
	if euid == 0 {
		return "/var/log/ll-series-upgrade-run.log"
	}
	return filepath.Join(os.TempDir(), "ll-series-upgrade-run.log")
}

func openHistory(dir string, logger *logging.Logger) *history.Store {
	store, err := history.Open(dir)
	if err != nil {
		logger.Warn("history store unavailable", "dir", dir, "error", err)
		return nil
	}
	return store
}
