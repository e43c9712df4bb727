// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "lite-upgrade", "config.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	var cfg UpgradeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:8677" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, "127.0.0.1:8677")
	}
	if cfg.Upgrade.BundleURL == "" {
		t.Error("Upgrade.BundleURL is empty")
	}
}

// TestLoadFromCreatesOnFirstRun verifies the first-run path writes
// defaults and returns them.
func TestLoadFromCreatesOnFirstRun(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("expected the config file to be created: %v", err)
	}
}

// TestLoadFromMergesPartialConfig verifies unset keys keep their
// defaults.
func TestLoadFromMergesPartialConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	partial := "upgrade:\n  reenable_ppas: true\n"
	if err := os.WriteFile(configPath, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if !cfg.Upgrade.ReenablePPAs {
		t.Error("Upgrade.ReenablePPAs = false, want true")
	}
	if cfg.Server.Listen != "127.0.0.1:8677" {
		t.Errorf("Server.Listen = %q, want the default kept", cfg.Server.Listen)
	}
	if cfg.Upgrade.BundleURL == "" {
		t.Error("Upgrade.BundleURL lost its default")
	}
}

// TestLoadFromRejectsInvalidConfig verifies validation failures.
func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: verbose\n"},
		{"bad bundle url", "upgrade:\n  bundle_url: not-a-url\n"},
		{"bad listen address", "server:\n  listen: nonsense\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFrom(configPath); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

// TestEffectivePathHonoursOverride verifies the env var wins.
func TestEffectivePathHonoursOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv("LL_UPGRADE_CONFIG", override)
	if got := effectivePath(); got != override {
		t.Errorf("effectivePath() = %q, want %q", got, override)
	}
}

// TestEffectivePathFallsBackForUsers verifies unprivileged processes
// get a per-user location when the system file is absent.
func TestEffectivePathFallsBackForUsers(t *testing.T) {
	t.Setenv("LL_UPGRADE_CONFIG", "")
	if os.Geteuid() == 0 {
		t.Skip("running as root; the system path always wins")
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		t.Skip("system config present on this host")
	}
	got := effectivePath()
	if got == DefaultPath {
		t.Errorf("effectivePath() = %q, want a per-user path", got)
	}
	if filepath.Base(got) != "config.yaml" {
		t.Errorf("effectivePath() = %q, want a config.yaml", got)
	}
}

// TestLoadFromRejectsMalformedYAML verifies parse failures surface.
func TestLoadFromRejectsMalformedYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(":\n\t- nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(configPath); err == nil {
		t.Error("expected a parse error")
	}
}
