// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package branding rewrites the release identity files after the
// package upgrade: /etc/llver, /etc/issue, /etc/lsb-release,
// /etc/os-release and the plymouth text theme. Every edit first tries
// a targeted substring replacement against the previous release
// string; when the file has drifted from the stock content, a
// line-level or whole-file fallback brings it to the new release.
package branding

import (
	"fmt"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/fsedit"
)

const (
	// FromVersion and ToVersion are the Linux Lite point releases on
	// either side of the series jump.
	FromVersion = "6.6"
	ToVersion   = "7.0"

	// ToSeriesLTS is the LTS label shown on the login banner.
	ToSeriesLTS = "7.6"
)

// Paths locates the branding files. Zero fields fall back to the live
// system locations via DefaultPaths.
type Paths struct {
	LLVer      string
	Issue      string
	LSBRelease string
	OSRelease  string
	Plymouth   string
}

// DefaultPaths returns the live system locations.
func DefaultPaths() Paths {
	return Paths{
		LLVer:      "/etc/llver",
		Issue:      "/etc/issue",
		LSBRelease: "/etc/lsb-release",
		OSRelease:  "/etc/os-release",
		Plymouth:   "/usr/share/plymouth/themes/text.plymouth",
	}
}

// Emitter receives human-readable progress lines.
type Emitter interface {
	Emitf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Updater applies the release identity edits through a shared Editor,
// which carries the dry-run flag and the backup policy.
type Updater struct {
	Paths  Paths
	Editor *fsedit.Editor
	Out    Emitter
}

func (u *Updater) warnf(format string, args ...any) {
	if u.Out != nil {
		u.Out.Warnf(format, args...)
	}
}

// Apply rewrites every branding file and returns how many changed.
// Per-file failures are reported as warnings and do not stop the
// remaining files.
func (u *Updater) Apply() int {
	changed := 0
	if u.updateLLVer() {
		changed++
	}
	if u.updateIssue() {
		changed++
	}
	if u.updateKeyValue(u.Paths.LSBRelease, "DISTRIB_DESCRIPTION=",
		fmt.Sprintf("DISTRIB_DESCRIPTION=%q", "Linux Lite "+ToVersion),
		fmt.Sprintf("DISTRIB_DESCRIPTION=%q", "Linux Lite "+FromVersion),
		"DISTRIB_DESCRIPTION entry", false) {
		changed++
	}
	if u.updateKeyValue(u.Paths.OSRelease, "PRETTY_NAME=",
		fmt.Sprintf("PRETTY_NAME=%q", "Linux Lite "+ToVersion),
		fmt.Sprintf("PRETTY_NAME=%q", "Linux Lite "+FromVersion),
		"PRETTY_NAME entry", false) {
		changed++
	}
	if u.updateKeyValue(u.Paths.Plymouth, "title=",
		"title=Linux Lite "+ToVersion,
		"title=Linux Lite "+FromVersion,
		"plymouth title", true) {
		changed++
	}
	return changed
}

// updateLLVer sets the one-line release marker, creating the file
// when missing.
func (u *Updater) updateLLVer() bool {
	target := "Linux Lite " + ToVersion
	ok, err := u.Editor.Replace(u.Paths.LLVer,
		fsedit.Replacement{Old: "Linux Lite " + FromVersion, New: target})
	if err != nil {
		u.warnf("could not update %s: %v", u.Paths.LLVer, err)
		return false
	}
	if ok {
		return true
	}
	ok, err = u.Editor.WriteFile(u.Paths.LLVer, target, target)
	if err != nil {
		u.warnf("could not update %s: %v", u.Paths.LLVer, err)
		return false
	}
	return ok
}

// updateIssue rewrites the login banner. The \n and \l sequences are
// getty escapes and stay literal in the file.
func (u *Updater) updateIssue() bool {
	oldBanner := `Linux Lite ` + FromVersion + ` LTS \n \l`
	newBanner := `Linux Lite ` + ToSeriesLTS + ` LTS \n \l`
	ok, err := u.Editor.Replace(u.Paths.Issue,
		fsedit.Replacement{Old: oldBanner, New: newBanner})
	if err != nil {
		u.warnf("could not update %s: %v", u.Paths.Issue, err)
		return false
	}
	if ok {
		return true
	}
	ok, err = u.Editor.WriteFile(u.Paths.Issue, newBanner+"\n", "Linux Lite "+ToSeriesLTS+" LTS")
	if err != nil {
		u.warnf("could not update %s: %v", u.Paths.Issue, err)
		return false
	}
	return ok
}

// updateKeyValue tries the stock-content replacement first, then
// falls back to rewriting whichever line carries the prefix.
func (u *Updater) updateKeyValue(path, prefix, target, previous, description string, stripIndent bool) bool {
	ok, err := u.Editor.Replace(path, fsedit.Replacement{Old: previous, New: target})
	if err != nil {
		u.warnf("could not update %s: %v", path, err)
		return false
	}
	if ok {
		return true
	}
	ok, err = u.Editor.UpdateLine(path, prefix, target, description, stripIndent)
	if err != nil {
		u.warnf("could not update %s: %v", path, err)
		return false
	}
	return ok
}
