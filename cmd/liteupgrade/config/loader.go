// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the system config location. The LL_UPGRADE_CONFIG
// environment variable overrides it.
const DefaultPath = "/etc/lite-upgrade/config.yaml"

var (
	// Global is a singleton instance
	Global UpgradeConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func loadInternal() error {
	cfg, err := LoadFrom(effectivePath())
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

// effectivePath picks the config file to load: the env override, the
// system file when it exists or the process can create it, else a
// per-user file so unprivileged preview commands still work.
func effectivePath() string {
	if env := os.Getenv("LL_UPGRADE_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	if os.Geteuid() == 0 {
		return DefaultPath
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return DefaultPath
	}
	return filepath.Join(base, "lite-upgrade", "config.yaml")
}

// LoadFrom reads, parses and validates the config at path, creating
// it with defaults on first run.
func LoadFrom(path string) (UpgradeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return UpgradeConfig{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return UpgradeConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return UpgradeConfig{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return UpgradeConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
