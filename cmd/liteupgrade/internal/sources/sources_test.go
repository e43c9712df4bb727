// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines []string
}

func (r *recorder) Emitf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recorder) Warnf(format string, args ...any) {
	r.lines = append(r.lines, "WARN: "+fmt.Sprintf(format, args...))
}

func (r *recorder) joined() string { return strings.Join(r.lines, "\n") }

// newAptDir builds a scratch apt tree with a sources.list and an
// empty sources.list.d.
func newAptDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sources.list.d"), 0o755))
	return root
}

func writeSnippet(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, "sources.list.d", name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestShouldBackupExemptsAptSources(t *testing.T) {
	root := newAptDir(t)
	m := NewManager(root, false, nil)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"sources.list itself", filepath.Join(root, "sources.list"), false},
		{"snippet under sources.list.d", filepath.Join(root, "sources.list.d", "linuxlite.list"), false},
		{"nested under sources.list.d", filepath.Join(root, "sources.list.d", "sub", "x.list"), false},
		{"branding file", filepath.Join(root, "llver"), true},
		{"sibling named like the dir", filepath.Join(root, "sources.list.d.conf"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ShouldBackup(tt.path))
		})
	}
}

func TestUpdateLiteCodename(t *testing.T) {
	root := newAptDir(t)
	listPath := writeSnippet(t, root, "linuxlite.list",
		"deb http://repo.linuxliteos.com/linuxlite/ fluorite main\n")
	savePath := writeSnippet(t, root, "linuxlite.list.save",
		"deb http://repo.linuxliteos.com/linuxlite/ fluorite main\n")
	otherPath := writeSnippet(t, root, "other.list",
		"deb http://example.com/ fluorite main\n")

	out := &recorder{}
	m := NewManager(root, false, out)
	changed := m.UpdateLiteCodename()

	assert.Equal(t, 2, changed)
	assert.Contains(t, readFile(t, listPath), "galena")
	assert.Contains(t, readFile(t, savePath), "galena")
	assert.Contains(t, readFile(t, otherPath), "fluorite", "only the Linux Lite entries are touched")
}

func TestUpdateLiteCodenameMissingFiles(t *testing.T) {
	root := newAptDir(t)
	out := &recorder{}
	m := NewManager(root, false, out)
	assert.Equal(t, 0, m.UpdateLiteCodename())
	assert.Contains(t, out.joined(), "not found; skipping")
}

func TestRetargetUbuntuCodename(t *testing.T) {
	root := newAptDir(t)
	mainList := filepath.Join(root, "sources.list")
	require.NoError(t, os.WriteFile(mainList,
		[]byte("deb http://archive.ubuntu.com/ubuntu jammy main\ndeb http://archive.ubuntu.com/ubuntu jammy-updates main\n"), 0o644))
	snippet := writeSnippet(t, root, "extra.list", "deb http://archive.ubuntu.com/ubuntu jammy universe\n")
	deb822 := writeSnippet(t, root, "ubuntu.sources", "Suites: jammy jammy-security\n")
	disabledPath := writeSnippet(t, root, "old.list.disabled", "deb http://example.com jammy main\n")
	keyring := writeSnippet(t, root, "vendor.gpg", "jammy\n")

	m := NewManager(root, false, &recorder{})
	changed, err := m.RetargetUbuntuCodename()
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	assert.Equal(t, "deb http://archive.ubuntu.com/ubuntu noble main\ndeb http://archive.ubuntu.com/ubuntu noble-updates main\n", readFile(t, mainList))
	assert.Contains(t, readFile(t, snippet), "noble universe")
	assert.Equal(t, "Suites: noble noble-security\n", readFile(t, deb822))
	assert.Contains(t, readFile(t, disabledPath), "jammy", "disabled snippets stay untouched")
	assert.Contains(t, readFile(t, keyring), "jammy", "non-sources files stay untouched")
}

func TestRetargetLeavesNoBackupFiles(t *testing.T) {
	root := newAptDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "sources.list"),
		[]byte("deb http://archive.ubuntu.com/ubuntu jammy main\n"), 0o644))

	m := NewManager(root, false, &recorder{})
	_, err := m.RetargetUbuntuCodename()
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".bak-", "apt sources are rewritten without backups")
	}
}

func TestDisableThirdParty(t *testing.T) {
	root := newAptDir(t)
	writeSnippet(t, root, "linuxlite.list", "deb http://repo.linuxliteos.com/linuxlite/ galena main\n")
	writeSnippet(t, root, "official.list", "deb http://archive.ubuntu.com/ubuntu noble main\n")
	thirdParty := writeSnippet(t, root, "vendor.list", "deb http://packages.example.com/apt stable main\n")

	out := &recorder{}
	m := NewManager(root, false, out)
	disabled, err := m.DisableThirdParty()
	require.NoError(t, err)
	assert.Equal(t, 1, disabled)

	assert.NoFileExists(t, thirdParty)
	assert.FileExists(t, thirdParty+".disabled")
	assert.FileExists(t, filepath.Join(root, "sources.list.d", "linuxlite.list"))
	assert.FileExists(t, filepath.Join(root, "sources.list.d", "official.list"))
	assert.Equal(t, []string{thirdParty + ".disabled"}, m.Disabled())
	assert.Contains(t, out.joined(), "Disabled vendor.list")
}

func TestDisableThirdPartyDryRun(t *testing.T) {
	root := newAptDir(t)
	thirdParty := writeSnippet(t, root, "vendor.list", "deb http://packages.example.com/apt stable main\n")

	out := &recorder{}
	m := NewManager(root, true, out)
	disabled, err := m.DisableThirdParty()
	require.NoError(t, err)
	assert.Equal(t, 1, disabled)

	assert.FileExists(t, thirdParty, "dry run never renames")
	assert.Contains(t, out.joined(), "[dry-run] Would disable vendor.list")
}

func TestReenableKnownPPAs(t *testing.T) {
	root := newAptDir(t)
	good := writeSnippet(t, root, "lite-extra.list.disabled",
		"deb http://ppa.launchpad.net/someteam/ppa/ubuntu noble main\n")
	bad := writeSnippet(t, root, "vendor.list.disabled",
		"deb http://packages.example.com/apt stable main\n")

	out := &recorder{}
	m := NewManager(root, false, out)
	count, err := m.ReenableKnownPPAs()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.NoFileExists(t, good)
	assert.FileExists(t, strings.TrimSuffix(good, ".disabled"))
	assert.FileExists(t, bad, "entries outside the allowlist stay disabled")
	assert.Contains(t, out.joined(), "Skipping vendor.list.disabled: not in allowlist")
}

func TestReenablePrefersRunRecords(t *testing.T) {
	root := newAptDir(t)
	writeSnippet(t, root, "lite-extra.list",
		"deb http://ppa.launchpad.net/someteam/ppa/ubuntu noble main\n")

	// A manager that disabled the entry itself re-enables it from its
	// own records, without relying on the directory scan.
	m := NewManager(root, false, &recorder{})
	require.NoError(t, os.Rename(
		filepath.Join(root, "sources.list.d", "lite-extra.list"),
		filepath.Join(root, "sources.list.d", "lite-extra.list.disabled"),
	))
	m.disabled = append(m.disabled, filepath.Join(root, "sources.list.d", "lite-extra.list.disabled"))

	count, err := m.ReenableKnownPPAs()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.FileExists(t, filepath.Join(root, "sources.list.d", "lite-extra.list"))
}

func TestReenableNothingToDo(t *testing.T) {
	root := newAptDir(t)
	out := &recorder{}
	m := NewManager(root, false, out)
	count, err := m.ReenableKnownPPAs()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Contains(t, out.joined(), "No disabled third-party entries detected.")
}

func TestReenableDryRunCountsWithoutRenaming(t *testing.T) {
	root := newAptDir(t)
	good := writeSnippet(t, root, "lite-extra.list.disabled",
		"deb http://ppa.launchpad.net/someteam/ppa/ubuntu noble main\n")

	out := &recorder{}
	m := NewManager(root, true, out)
	count, err := m.ReenableKnownPPAs()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.FileExists(t, good)
	assert.Contains(t, out.joined(), "[dry-run] Would re-enable lite-extra.list")
}
