// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sources manages the apt configuration the series upgrade
// has to rewrite: the release codename switch in sources.list and
// sources.list.d, the Linux Lite repository codename, and the
// disable/re-enable cycle for third-party package lists.
//
// All paths hang off a configurable root so the package is testable
// against a scratch directory. Production callers use DefaultRoot.
package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/fsedit"
)

const (
	// DefaultRoot is the apt configuration directory on a live system.
	DefaultRoot = "/etc/apt"

	// LiteFromCodename and LiteToCodename are the Linux Lite
	// repository codenames for series 6 and series 7.
	LiteFromCodename = "fluorite"
	LiteToCodename   = "galena"

	// UbuntuFromCodename and UbuntuToCodename are the Ubuntu release
	// codenames underneath the two series.
	UbuntuFromCodename = "jammy"
	UbuntuToCodename   = "noble"

	disabledSuffix = ".disabled"
)

// ppaAllowlist marks third-party entries that are known to carry
// noble packages and are safe to re-enable after the upgrade.
var ppaAllowlist = []string{
	"linuxliteos.com",
	"linuxlite",
	"ppa.launchpad.net",
}

// Emitter receives human-readable progress lines.
type Emitter interface {
	Emitf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Manager rewrites apt sources under a single root directory. It is
// not safe for concurrent use; the upgrade drives it from one stage
// at a time.
type Manager struct {
	root   string
	dryRun bool
	out    Emitter
	editor *fsedit.Editor

	// disabled records the .disabled paths produced in this run so
	// the re-enable stage can prefer them over a directory scan.
	disabled []string
}

// NewManager returns a Manager over the apt directory at root.
// An empty root means DefaultRoot.
func NewManager(root string, dryRun bool, out Emitter) *Manager {
	if root == "" {
		root = DefaultRoot
	}
	m := &Manager{root: root, dryRun: dryRun, out: out}
	m.editor = &fsedit.Editor{
		DryRun:     dryRun,
		SkipBackup: m.isAptSource,
		Out:        out,
	}
	return m
}

func (m *Manager) emitf(format string, args ...any) {
	if m.out != nil {
		m.out.Emitf(format, args...)
	}
}

func (m *Manager) warnf(format string, args ...any) {
	if m.out != nil {
		m.out.Warnf(format, args...)
	}
}

func (m *Manager) sourcesList() string { return filepath.Join(m.root, "sources.list") }
func (m *Manager) sourcesDir() string  { return filepath.Join(m.root, "sources.list.d") }

// isAptSource reports whether path is the sources.list file or lives
// inside sources.list.d. Those files are rewritten without backups;
// stale .bak siblings in that directory confuse apt tooling.
func (m *Manager) isAptSource(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	list, err := filepath.Abs(m.sourcesList())
	if err != nil {
		list = m.sourcesList()
	}
	if abs == list {
		return true
	}
	dir, err := filepath.Abs(m.sourcesDir())
	if err != nil {
		dir = m.sourcesDir()
	}
	return abs == dir || strings.HasPrefix(abs, dir+string(os.PathSeparator))
}

// ShouldBackup reports whether an edit to path must leave a safety
// copy. Apt sources files are the only exemption.
func (m *Manager) ShouldBackup(path string) bool {
	return !m.isAptSource(path)
}

// SetOutput redirects progress lines. One Manager carries run-wide
// state, like the disabled-entry record, across stages that each log
// through their own context.
func (m *Manager) SetOutput(out Emitter) {
	m.out = out
	m.editor.Out = out
}

// Editor exposes the backup-policy-aware editor for callers that
// rewrite files outside the apt tree, such as branding updates.
func (m *Manager) Editor() *fsedit.Editor {
	return m.editor
}

// UpdateLiteCodename switches the Linux Lite repository entries from
// the series 6 codename to the series 7 one. Both linuxlite.list and
// the .save sibling apt leaves behind are covered. Returns how many
// files changed.
func (m *Manager) UpdateLiteCodename() int {
	changed := 0
	for _, name := range []string{"linuxlite.list", "linuxlite.list.save"} {
		path := filepath.Join(m.sourcesDir(), name)
		ok, err := m.editor.Replace(path, fsedit.Replacement{Old: LiteFromCodename, New: LiteToCodename})
		if err != nil {
			m.warnf("could not update %s: %v", name, err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed
}

// RetargetUbuntuCodename rewrites the Ubuntu release codename in
// sources.list and every active .list and .sources snippet under
// sources.list.d. Disabled snippets are left alone. Returns how many
// files changed.
func (m *Manager) RetargetUbuntuCodename() (int, error) {
	var candidates []string
	if _, err := os.Stat(m.sourcesList()); err == nil {
		candidates = append(candidates, m.sourcesList())
	}
	entries, err := os.ReadDir(m.sourcesDir())
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("reading %s: %w", m.sourcesDir(), err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, disabledSuffix) {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".list" && ext != ".sources" {
			continue
		}
		candidates = append(candidates, filepath.Join(m.sourcesDir(), name))
	}

	changed := 0
	for _, path := range candidates {
		ok, err := m.editor.Replace(path, fsedit.Replacement{Old: UbuntuFromCodename, New: UbuntuToCodename})
		if err != nil {
			m.warnf("could not update %s: %v", path, err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// allowlisted reports whether the entry content references a
// repository the upgrade trusts.
func allowlisted(content string) bool {
	for _, marker := range ppaAllowlist {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// DisableThirdParty renames third-party .list snippets to .disabled.
// Entries referencing ubuntu.com or the Linux Lite repositories stay
// active. Returns how many entries were disabled.
func (m *Manager) DisableThirdParty() (int, error) {
	matches, err := filepath.Glob(filepath.Join(m.sourcesDir(), "*.list"))
	if err != nil {
		return 0, err
	}
	disabled := 0
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			m.warnf("could not inspect %s: %v", path, err)
			continue
		}
		txt := string(raw)
		if strings.Contains(txt, "ubuntu.com") || strings.Contains(txt, "linuxlite") || strings.Contains(txt, "linuxliteos") {
			continue
		}
		target := path + disabledSuffix
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if m.dryRun {
			m.emitf("[dry-run] Would disable %s", filepath.Base(path))
			m.disabled = append(m.disabled, target)
			disabled++
			continue
		}
		if err := os.Rename(path, target); err != nil {
			m.warnf("could not disable %s: %v", filepath.Base(path), err)
			continue
		}
		m.disabled = append(m.disabled, target)
		m.emitf("Disabled %s", filepath.Base(path))
		disabled++
	}
	return disabled, nil
}

// Disabled returns the .disabled paths recorded in this run.
func (m *Manager) Disabled() []string {
	return append([]string(nil), m.disabled...)
}

// ReenableKnownPPAs restores .disabled entries whose content matches
// the allowlist. Entries disabled earlier in this run are considered
// first, then a directory scan picks up the rest. Returns how many
// entries were re-enabled; a positive count means the caller should
// refresh the package lists.
func (m *Manager) ReenableKnownPPAs() (int, error) {
	seen := map[string]bool{}
	var consider []string
	for _, path := range m.disabled {
		if !seen[path] {
			consider = append(consider, path)
			seen[path] = true
		}
	}
	matches, err := filepath.Glob(filepath.Join(m.sourcesDir(), "*.list"+disabledSuffix))
	if err != nil {
		return 0, err
	}
	for _, path := range matches {
		if !seen[path] {
			consider = append(consider, path)
			seen[path] = true
		}
	}
	if len(consider) == 0 {
		m.emitf("No disabled third-party entries detected.")
		return 0, nil
	}

	count := 0
	for _, path := range consider {
		target := strings.TrimSuffix(path, disabledSuffix)
		contentPath := path
		if _, err := os.Stat(contentPath); err != nil {
			contentPath = target
		}
		raw, err := os.ReadFile(contentPath)
		if err != nil {
			m.warnf("could not process %s: %v", filepath.Base(path), err)
			continue
		}
		if !allowlisted(string(raw)) {
			m.emitf("Skipping %s: not in allowlist", filepath.Base(contentPath))
			continue
		}
		if m.dryRun {
			m.emitf("[dry-run] Would re-enable %s", filepath.Base(target))
			count++
			continue
		}
		if _, err := os.Stat(target); err == nil {
			m.emitf("Already enabled: %s", filepath.Base(target))
			continue
		}
		if _, err := os.Stat(path); err != nil {
			m.warnf("expected %s to exist; skipping", filepath.Base(path))
			continue
		}
		if err := os.Rename(path, target); err != nil {
			m.warnf("could not re-enable %s: %v", filepath.Base(target), err)
			continue
		}
		m.emitf("Re-enabled %s", filepath.Base(target))
		count++
	}
	return count, nil
}
