// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
)

type UpgradeConfig struct {
	// Upgrade: knobs for the series upgrade itself
	Upgrade UpgradeSettings `yaml:"upgrade"`

	// Log: where the run log is written
	Log LogSettings `yaml:"log"`

	// History: local store of past upgrade runs
	History HistorySettings `yaml:"history"`

	// Server: the local control API
	Server ServerSettings `yaml:"server"`
}

type UpgradeSettings struct {
	// BundleURL is where the LibreOffice series 7 bundle is fetched from.
	BundleURL string `yaml:"bundle_url" validate:"required,url"`

	// CacheDir overrides the download cache. Empty picks
	// /var/cache/ll-series-upgrade or the /tmp fallback by uid.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// AptRoot overrides the apt configuration directory. Empty means /etc/apt.
	AptRoot string `yaml:"apt_root,omitempty"`

	// ReenablePPAs restores allowlisted third-party sources after the upgrade.
	ReenablePPAs bool `yaml:"reenable_ppas"`
}

type LogSettings struct {
	// Path overrides the run log location. Empty picks
	// /var/log/ll-series-upgrade.log or the /tmp fallback by uid.
	Path string `yaml:"path,omitempty"`

	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type HistorySettings struct {
	// Dir holds the run history database.
	Dir string `yaml:"dir" validate:"required"`
}

type ServerSettings struct {
	// Listen is the address the control API binds to. Local only;
	// the API carries no authentication.
	Listen string `yaml:"listen" validate:"required,hostname_port"`
}

func DefaultConfig() UpgradeConfig {
	historyDir := "/var/lib/ll-series-upgrade/history"
	if os.Geteuid() != 0 {
		historyDir = "/tmp/ll-series-upgrade/history"
	}
	return UpgradeConfig{
		Upgrade: UpgradeSettings{
			BundleURL:    "https://repo.linuxliteos.com/upgrade/7.6/libreoffice/loffice76.tar.gz",
			ReenablePPAs: false,
		},
		Log: LogSettings{
			Level: "info",
		},
		History: HistorySettings{
			Dir: historyDir,
		},
		Server: ServerSettings{
			Listen: "127.0.0.1:8677",
		},
	}
}
