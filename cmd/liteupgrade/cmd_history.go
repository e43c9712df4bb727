// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/config"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/history"
	"github.com/linuxliteos/series-upgrade/pkg/ux"
)

func runHistoryList(cmd *cobra.Command, args []string) {
	// Opening a large badger store can take a moment.
	var reports []engine.Report
	err := ux.WithSpinner("Reading run history", func() error {
		store, err := history.Open(config.Global.History.Dir)
		if err != nil {
			return err
		}
		defer store.Close()
		reports, err = store.List(historyLimit)
		return err
	})
	if err != nil {
		os.Exit(1)
	}
	if len(reports) == 0 {
		ux.Info("No upgrade runs recorded yet.")
		return
	}

	ux.Title("Past upgrade runs")
	for _, r := range reports {
		icon := outcomeIcon(r.Outcome)
		detail := fmt.Sprintf("%s, %s, %d%%, %s",
			r.Mode, r.Outcome, r.Percent, r.Duration.Round(100*time.Millisecond))
		ux.StageLine(fmt.Sprintf("%s  %s", r.Started.Local().Format("2006-01-02 15:04"), r.RunID), icon, detail)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	store, err := history.Open(config.Global.History.Dir)
	if err != nil {
		log.Fatalf("Could not open the history store: %v", err)
	}
	defer store.Close()

	var report *engine.Report
	if len(args) == 1 {
		report, err = store.Get(args[0])
	} else {
		report, err = store.Latest()
	}
	if errors.Is(err, history.ErrNotFound) {
		ux.Error("No such run.")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Could not read the run: %v", err)
	}

	ux.Title(fmt.Sprintf("Run %s", report.RunID))
	ux.Info(fmt.Sprintf("Started:  %s", report.Started.Local().Format("2006-01-02 15:04:05")))
	ux.Info(fmt.Sprintf("Mode:     %s", report.Mode))
	ux.Info(fmt.Sprintf("Outcome:  %s", report.Outcome))
	ux.Info(fmt.Sprintf("Progress: %d%%", report.Percent))
	if report.FailedStage != "" {
		ux.Info(fmt.Sprintf("Failed:   %s", report.FailedStage))
	}
	fmt.Println()
	printReport(report)
}

func outcomeIcon(o engine.Outcome) ux.Icon {
	switch o {
	case engine.OutcomeSucceeded:
		return ux.IconSuccess
	case engine.OutcomeFailed:
		return ux.IconError
	default:
		return ux.IconWarning
	}
}
