// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/config"
	"github.com/linuxliteos/series-upgrade/pkg/ux"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	configPath   string
	plainOutput  bool
	dryRun       bool
	assumeYes    bool
	reenablePPAs bool
	noTUI        bool
	followLog    bool
	historyLimit int
	listenAddr   string

	rootCmd = &cobra.Command{
		Use:   "lite-upgrade",
		Short: "Upgrade Linux Lite series 6 to series 7",
		Long: `lite-upgrade walks an installed Linux Lite series 6 system through
the full release upgrade to series 7: apt sources, the Ubuntu
dist-upgrade, the LibreOffice bundle, and system branding.

Run 'lite-upgrade upgrade --dry-run' first to see every change the
real run would make without touching the system.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if plainOutput {
				ux.SetPlain(true)
			}
			if configPath != "" {
				cfg, err := config.LoadFrom(configPath)
				if err != nil {
					log.Fatalf("Error loading config %s: %v", configPath, err)
				}
				config.Global = cfg
			} else if err := config.Load(); err != nil {
				log.Fatalf("Error loading config: %v", err)
			}
		},
	}

	upgradeCmd = &cobra.Command{
		Use:   "upgrade",
		Short: "Run the series 6 to series 7 upgrade",
		Run:   runUpgrade, // Defined in cmd_upgrade.go
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Show the upgrade stages and their progress weights",
		Run:   runPlan, // Defined in cmd_plan.go
	}

	logCmd = &cobra.Command{
		Use:   "log",
		Short: "Print the upgrade run log",
		Run:   runLog, // Defined in cmd_log.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect past upgrade runs",
	}
	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List past upgrade runs, newest first",
		Run:   runHistoryList, // Defined in cmd_history.go
	}
	historyShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "Show the stage records of one past run",
		Args:  cobra.MaximumNArgs(1),
		Run:   runHistoryShow, // Defined in cmd_history.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the local control API for desktop frontends",
		Run:   runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the lite-upgrade version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("lite-upgrade %s\n", version)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default /etc/lite-upgrade/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Force plain ASCII output (auto-enabled when stdout is not a terminal)")

	rootCmd.AddCommand(upgradeCmd)
	upgradeCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false,
		"Simulate the whole upgrade without changing the system")
	upgradeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false,
		"Skip the confirmation prompt")
	upgradeCmd.Flags().BoolVar(&reenablePPAs, "reenable-ppas", false,
		"Re-enable known-good PPAs after the upgrade")
	upgradeCmd.Flags().BoolVar(&noTUI, "no-tui", false,
		"Stream log lines instead of the full-screen progress view")

	rootCmd.AddCommand(planCmd)

	rootCmd.AddCommand(logCmd)
	logCmd.Flags().BoolVarP(&followLog, "follow", "f", false,
		"Keep the log open and print new lines as they arrive")

	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of runs to list")
	historyCmd.AddCommand(historyShowCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "",
		"Listen address (default from config, 127.0.0.1:8677)")

	rootCmd.AddCommand(versionCmd)
}
