// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fsedit rewrites configuration files in place with a
// timestamped safety copy.
//
// # Description
//
// Every destructive edit the upgrade performs on a system file flows
// through an Editor. The Editor understands dry-run mode (report the
// edit, touch nothing), writes a ".bak-<unix>" sibling before
// modifying a file, and lets the caller exempt paths from the backup
// policy. Apt sources files are exempt because stale backups inside
// /etc/apt/sources.list.d are themselves parsed by apt tooling.
//
// # Limitations
//
//   - Edits are not atomic. A crash mid-write can leave a truncated
//     file, which is why the backup is written first.
//   - Intended for small text files. Content is held in memory.
package fsedit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Replacement is a literal old/new substring pair.
type Replacement struct {
	Old string
	New string
}

// Emitter receives human-readable progress lines from the Editor.
type Emitter interface {
	Emitf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Editor performs backed-up, dry-run-aware file edits.
type Editor struct {
	// DryRun reports the edit without touching the filesystem.
	DryRun bool

	// SkipBackup exempts a path from the safety-copy policy.
	// Nil means every edited file is backed up.
	SkipBackup func(path string) bool

	// Now stamps backup names. Nil means time.Now.
	Now func() time.Time

	// Out receives progress lines. Nil discards them.
	Out Emitter
}

func (e *Editor) emitf(format string, args ...any) {
	if e.Out != nil {
		e.Out.Emitf(format, args...)
	}
}

func (e *Editor) warnf(format string, args ...any) {
	if e.Out != nil {
		e.Out.Warnf(format, args...)
	}
}

func (e *Editor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Editor) backupName(path string) string {
	return fmt.Sprintf("%s.bak-%d", path, e.now().Unix())
}

// Replace applies the replacements to the file at path and reports
// whether the content changed. A missing file is noted and skipped,
// not an error.
func (e *Editor) Replace(path string, reps ...Replacement) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		e.emitf("Note: %s not found; skipping", path)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content := string(raw)
	updated := content
	for _, r := range reps {
		updated = strings.ReplaceAll(updated, r.Old, r.New)
	}
	if updated == content {
		e.emitf("No changes needed in %s", path)
		return false, nil
	}
	if e.DryRun {
		e.emitf("[dry-run] Would modify %s", path)
		return true, nil
	}
	return true, e.rewrite(path, []byte(updated), "")
}

// WriteFile sets the file at path to exactly content, creating it and
// any parent directories when absent. The description names the edit
// in progress lines.
func (e *Editor) WriteFile(path, content, description string) (bool, error) {
	if e.DryRun {
		e.emitf("[dry-run] Would set %s to %s", path, description)
		return true, nil
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if string(raw) == content {
			e.emitf("No changes needed in %s", path)
			return false, nil
		}
		if err := e.rewrite(path, []byte(content), description); err != nil {
			return false, err
		}
		return true, nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return false, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return false, err
		}
		e.emitf("Created %s (%s)", path, description)
		return true, nil
	default:
		return false, err
	}
}

// UpdateLine rewrites the first line starting with prefix to newLine.
// With stripIndent the prefix is matched after leading whitespace and
// the indentation is preserved. Reports whether the file changed; a
// missing file or a missing entry is noted and skipped.
func (e *Editor) UpdateLine(path, prefix, newLine, description string, stripIndent bool) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		e.emitf("Note: %s not found; skipping", path)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	found := false
	changed := false
	for i, line := range lines {
		compare := line
		if stripIndent {
			compare = strings.TrimLeft(line, " \t")
		}
		if !strings.HasPrefix(compare, prefix) {
			continue
		}
		found = true
		replacement := newLine
		if stripIndent {
			replacement = line[:len(line)-len(compare)] + newLine
		}
		if lines[i] != replacement {
			lines[i] = replacement
			changed = true
		}
		break
	}
	if !found {
		e.emitf("Note: %s has no entry starting with %q; skipping", path, prefix)
		return false, nil
	}
	if !changed {
		e.emitf("No changes needed in %s", path)
		return false, nil
	}
	if e.DryRun {
		e.emitf("[dry-run] Would modify %s (%s)", path, description)
		return true, nil
	}
	updated := []byte(strings.Join(lines, "\n") + "\n")
	return true, e.rewrite(path, updated, description)
}

// rewrite writes updated content over path, preserving the file mode
// and leaving a backup unless the path is exempt.
func (e *Editor) rewrite(path string, updated []byte, description string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	skip := e.SkipBackup != nil && e.SkipBackup(path)
	var backup string
	if !skip {
		backup = e.backupName(path)
		if err := copyFile(path, backup, info.Mode()); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, updated, info.Mode()); err != nil {
		return err
	}
	switch {
	case description != "" && !skip:
		e.emitf("Updated %s (%s; backup: %s)", path, description, filepath.Base(backup))
	case description != "":
		e.emitf("Updated %s (%s; no backup per policy)", path, description)
	case !skip:
		e.emitf("Updated %s (backup: %s)", path, filepath.Base(backup))
	default:
		e.emitf("Updated %s (no backup per policy)", path)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
