// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// lite-upgrade performs the Linux Lite series 6 to series 7 release
// upgrade: apt source retargeting, the Ubuntu dist-upgrade itself,
// the LibreOffice bundle swap, and post-upgrade branding, driven by a
// weighted stage plan with a full dry-run mode.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
