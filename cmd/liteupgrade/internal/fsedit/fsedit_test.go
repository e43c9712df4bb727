// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fsedit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

func fixedEditor(out *recorder) *Editor {
	return &Editor{
		Now: func() time.Time { return time.Unix(1700000000, 0) },
		Out: out,
	}
}

func TestReplaceCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lsb-release")
	require.NoError(t, os.WriteFile(path, []byte("DISTRIB_CODENAME=jammy\n"), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).Replace(path, Replacement{Old: "jammy", New: "noble"})
	require.NoError(t, err)
	assert.True(t, changed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DISTRIB_CODENAME=noble\n", string(raw))

	backup := path + ".bak-1700000000"
	raw, err = os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "DISTRIB_CODENAME=jammy\n", string(raw))
	assert.Contains(t, out.joined(), "backup: lsb-release.bak-1700000000")
}

func TestReplaceSkipsBackupForExemptPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.list")
	require.NoError(t, os.WriteFile(path, []byte("deb http://archive.ubuntu.com jammy main\n"), 0o644))

	out := &recorder{}
	ed := fixedEditor(out)
	ed.SkipBackup = func(p string) bool { return p == path }

	changed, err := ed.Replace(path, Replacement{Old: "jammy", New: "noble"})
	require.NoError(t, err)
	assert.True(t, changed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no backup file expected")
	assert.Contains(t, out.joined(), "no backup per policy")
}

func TestReplaceMissingFileIsNotAnError(t *testing.T) {
	out := &recorder{}
	changed, err := fixedEditor(out).Replace(filepath.Join(t.TempDir(), "absent"), Replacement{Old: "a", New: "b"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Contains(t, out.joined(), "not found; skipping")
}

func TestReplaceNoChangeLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issue")
	require.NoError(t, os.WriteFile(path, []byte("Linux Lite 7.0\n"), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).Replace(path, Replacement{Old: "jammy", New: "noble"})
	require.NoError(t, err)
	assert.False(t, changed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReplaceDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llver")
	require.NoError(t, os.WriteFile(path, []byte("Linux Lite 6.6\n"), 0o644))

	out := &recorder{}
	ed := fixedEditor(out)
	ed.DryRun = true

	changed, err := ed.Replace(path, Replacement{Old: "6.6", New: "7.0"})
	require.NoError(t, err)
	assert.True(t, changed, "dry run still reports that the edit would apply")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Linux Lite 6.6\n", string(raw))
	assert.Contains(t, out.joined(), "[dry-run] Would modify")
}

func TestWriteFileCreatesWithParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etc", "llver")

	out := &recorder{}
	changed, err := fixedEditor(out).WriteFile(path, "Linux Lite 7.0", "release marker")
	require.NoError(t, err)
	assert.True(t, changed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Linux Lite 7.0", string(raw))
}

func TestWriteFileBacksUpExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llver")
	require.NoError(t, os.WriteFile(path, []byte("Linux Lite 6.6"), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).WriteFile(path, "Linux Lite 7.0", "release marker")
	require.NoError(t, err)
	assert.True(t, changed)

	raw, err := os.ReadFile(path + ".bak-1700000000")
	require.NoError(t, err)
	assert.Equal(t, "Linux Lite 6.6", string(raw))
}

func TestWriteFileUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llver")
	require.NoError(t, os.WriteFile(path, []byte("Linux Lite 7.0"), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).WriteFile(path, "Linux Lite 7.0", "release marker")
	require.NoError(t, err)
	assert.False(t, changed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "os-release")
	content := "NAME=\"Linux Lite\"\nPRETTY_NAME=\"Linux Lite 6.6\"\nID=linuxlite\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).UpdateLine(path, "PRETTY_NAME=", "PRETTY_NAME=\"Linux Lite 7.0\"", "PRETTY_NAME entry", false)
	require.NoError(t, err)
	assert.True(t, changed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NAME=\"Linux Lite\"\nPRETTY_NAME=\"Linux Lite 7.0\"\nID=linuxlite\n", string(raw))
}

func TestUpdateLinePreservesIndent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "text.plymouth")
	content := "[Plymouth Theme]\n  title=Linux Lite 6.6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).UpdateLine(path, "title=", "title=Linux Lite 7.0", "plymouth title", true)
	require.NoError(t, err)
	assert.True(t, changed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Plymouth Theme]\n  title=Linux Lite 7.0\n", string(raw))
}

func TestUpdateLineMissingEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "os-release")
	require.NoError(t, os.WriteFile(path, []byte("ID=linuxlite\n"), 0o644))

	out := &recorder{}
	changed, err := fixedEditor(out).UpdateLine(path, "PRETTY_NAME=", "PRETTY_NAME=\"x\"", "PRETTY_NAME entry", false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Contains(t, out.joined(), "no entry starting with")
}
