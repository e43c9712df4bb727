// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/config"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/plan"
	"github.com/linuxliteos/series-upgrade/pkg/ux"
)

func runPlan(cmd *cobra.Command, args []string) {
	cfg := config.Global
	stages, err := plan.Build(plan.Options{
		DryRun:       true,
		ReenablePPAs: reenablePPAs || cfg.Upgrade.ReenablePPAs,
		AptRoot:      cfg.Upgrade.AptRoot,
		CacheDir:     cfg.Upgrade.CacheDir,
		BundleURL:    cfg.Upgrade.BundleURL,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Could not build the upgrade plan: %v", err))
		os.Exit(1)
	}

	ux.Title("Upgrade plan")
	total := 0
	for _, st := range stages {
		total += st.Weight
	}
	for _, st := range stages {
		share := float64(st.Weight) * 100 / float64(total)
		detail := fmt.Sprintf("%s, %d ops, %.0f%% of progress", st.Class, len(st.Operations), share)
		icon := ux.IconArrow
		if st.Class == engine.Conditional {
			icon = ux.IconPending
		}
		ux.StageLine(st.Name, icon, detail)
	}
	ux.Box("Totals", fmt.Sprintf("%d stages, total weight %d", len(stages), total))
}
