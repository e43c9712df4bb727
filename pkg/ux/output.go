// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for lite-upgrade.
//
// Two render modes exist. Styled mode uses the Linux Lite palette and
// unicode status glyphs; plain mode emits greppable ASCII for pipes,
// cron, and the release notes people paste into forum posts. The mode
// is auto-detected from whether stdout is a terminal and can be
// forced either way with SetPlain.
package ux

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Linux Lite palette. Blues from the wallpaper line, gold for the
// feather accent.
var (
	ColorSkyBright = lipgloss.Color("#57AEE8") // highlights
	ColorSkyBlue   = lipgloss.Color("#2D7FC3") // primary brand color
	ColorDeepBlue  = lipgloss.Color("#1B5E92") // borders
	ColorGold      = lipgloss.Color("#F4C542") // feather accent, warnings
	ColorSuccess   = lipgloss.Color("#57E8A4")
	ColorError     = lipgloss.Color("#E85757")
	ColorSlate     = lipgloss.Color("#5C6B73") // muted text
)

// Styles holds the pre-built lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorSkyBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorSkyBlue),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorGold),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorSkyBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDeepBlue).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGold).
		Padding(0, 1),
}

// plain is 0 for styled, 1 for plain. Read through Plain().
var plain atomic.Int32

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		plain.Store(1)
	}
}

// SetPlain forces plain or styled output, overriding tty detection.
func SetPlain(v bool) {
	if v {
		plain.Store(1)
	} else {
		plain.Store(0)
	}
}

// Plain reports whether output is in plain ASCII mode.
func Plain() bool {
	return plain.Load() == 1
}

// Icon is a status glyph with an ASCII fallback for plain mode.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconSkipped Icon = "–"
	IconArrow   Icon = "→"
)

// Render returns the glyph styled for its meaning.
func (i Icon) Render() string {
	if Plain() {
		switch i {
		case IconSuccess:
			return "[ok]"
		case IconWarning:
			return "[warn]"
		case IconError:
			return "[fail]"
		case IconPending:
			return "[..]"
		case IconSkipped:
			return "[skip]"
		default:
			return string(i)
		}
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending, IconSkipped:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a styled heading.
func Title(text string) {
	if Plain() {
		fmt.Printf("== %s ==\n", text)
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success line.
func Success(text string) {
	if Plain() {
		fmt.Printf("OK: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning line.
func Warning(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error line.
func Error(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an ordinary line with a gutter mark.
func Info(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Nothing in plain mode.
func Muted(text string) {
	if Plain() {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints titled content in a rounded box.
func Box(title, content string) {
	if Plain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	fmt.Println(Styles.Box.Width(62).Render(Styles.Title.Render(title) + "\n" + content))
}

// WarningBox prints titled content in a warning-colored box.
func WarningBox(title, content string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "WARN %s: %s\n", title, content)
		return
	}
	fmt.Println(Styles.WarningBox.Width(62).Render(Styles.Warning.Bold(true).Render(title) + "\n" + content))
}

// StageLine prints one stage of the plan with its status glyph and
// optional detail in parentheses.
func StageLine(name string, status Icon, detail string) {
	if Plain() {
		if detail != "" {
			fmt.Printf("%s\t%s\t%s\n", status.Render(), name, detail)
		} else {
			fmt.Printf("%s\t%s\n", status.Render(), name)
		}
		return
	}
	if detail != "" {
		fmt.Printf("%s %s %s\n", status.Render(), name, Styles.Muted.Render("("+detail+")"))
	} else {
		fmt.Printf("%s %s\n", status.Render(), name)
	}
}

// Summary prints the end-of-run stage tally.
func Summary(succeeded, skipped, failed int) {
	if Plain() {
		fmt.Printf("SUMMARY: succeeded=%d skipped=%d failed=%d\n", succeeded, skipped, failed)
		return
	}
	fmt.Printf("\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", succeeded)), Styles.Muted.Render("succeeded"),
		Styles.Warning.Render(fmt.Sprintf("%d", skipped)), Styles.Muted.Render("skipped"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
	)
}

// ProgressBar renders a percent bar of the given width.
func ProgressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if Plain() {
		return fmt.Sprintf("%d%%", percent)
	}
	filled := percent * width / 100
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3d%%", bar, percent)
}
