// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/linuxliteos/series-upgrade/pkg/ux"
)

func runLog(cmd *cobra.Command, args []string) {
	path := runLogPath(os.Geteuid())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			ux.Info("No upgrade log yet.")
			return
		}
		log.Fatalf("Could not open the log: %v", err)
	}
	defer f.Close()

	if _, err := io.Copy(os.Stdout, f); err != nil {
		log.Fatalf("Could not read the log: %v", err)
	}
	if !followLog {
		return
	}

	// Follow mode: keep the file open and print whatever a running
	// upgrade appends, like tail -f but scoped to this one file.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("Could not watch the log: %v", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		log.Fatalf("Could not watch the log: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-interrupt:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) {
				if _, err := io.Copy(os.Stdout, f); err != nil {
					log.Fatalf("Could not read the log: %v", err)
				}
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				ux.Info("Log file rotated; stopping.")
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
