// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/pkg/ux"
)

// Messages

type logMsg engine.LogLine

type progressMsg engine.ProgressUpdate

type doneMsg struct {
	report *engine.Report
	err    error
}

// upgradeModel is the full-screen progress view for a running
// upgrade: a progress bar on top, the live log in a viewport below.
type upgradeModel struct {
	mode engine.Mode

	logCh  <-chan engine.LogLine
	progCh <-chan engine.ProgressUpdate
	doneCh <-chan doneMsg
	cancel context.CancelFunc

	bar      progress.Model
	viewport viewport.Model
	percent  int
	stage    string
	lines    []string

	width    int
	height   int
	ready    bool
	aborting bool

	report *engine.Report
	err    error
}

func newUpgradeModel(mode engine.Mode, logCh <-chan engine.LogLine, progCh <-chan engine.ProgressUpdate, doneCh <-chan doneMsg, cancel context.CancelFunc) upgradeModel {
	bar := progress.New(
		progress.WithGradient(string(ux.ColorDeepBlue), string(ux.ColorSkyBright)),
		progress.WithoutPercentage(),
	)
	return upgradeModel{
		mode:   mode,
		logCh:  logCh,
		progCh: progCh,
		doneCh: doneCh,
		cancel: cancel,
		bar:    bar,
	}
}

func (m upgradeModel) waitForLog() tea.Cmd {
	return func() tea.Msg {
		line, ok := <-m.logCh
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m upgradeModel) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.progCh
		if !ok {
			return nil
		}
		return progressMsg(u)
	}
}

func (m upgradeModel) waitForDone() tea.Cmd {
	return func() tea.Msg {
		return <-m.doneCh
	}
}

func (m upgradeModel) Init() tea.Cmd {
	return tea.Batch(m.waitForLog(), m.waitForProgress(), m.waitForDone())
}

func (m upgradeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 10
		headerHeight := 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// First press requests an abort at the next stage
			// boundary; the run keeps the terminal until it ends.
			if !m.aborting {
				m.aborting = true
				m.cancel()
			}
			return m, nil
		case "up", "k":
			m.viewport.ScrollUp(1)
		case "down", "j":
			m.viewport.ScrollDown(1)
		case "pgup":
			m.viewport.HalfPageUp()
		case "pgdown":
			m.viewport.HalfPageDown()
		}
		return m, nil

	case logMsg:
		m.lines = append(m.lines, formatTUILine(engine.LogLine(msg)))
		if m.ready {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, m.waitForLog()

	case progressMsg:
		m.percent = msg.Percent
		m.stage = msg.Stage
		return m, m.waitForProgress()

	case doneMsg:
		m.report = msg.report
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m upgradeModel) View() string {
	if !m.ready {
		return "Preparing the upgrade..."
	}

	title := "Linux Lite Series Upgrade"
	if m.mode == engine.ModeDryRun {
		title += " (dry run)"
	}
	header := ux.Styles.Title.Render(title)

	status := m.stage
	if m.aborting {
		status = "Aborting at the next stage boundary..."
	}
	bar := fmt.Sprintf("%s %3d%%  %s",
		m.bar.ViewAs(float64(m.percent)/100.0),
		m.percent,
		ux.Styles.Subtitle.Render(status),
	)

	help := ux.Styles.Muted.Render("↑/↓ scroll  q abort")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		bar,
		help,
		m.viewport.View(),
	)
}

func formatTUILine(line engine.LogLine) string {
	switch line.Level {
	case engine.LevelWarning:
		return ux.Styles.Warning.Render(line.Text)
	case engine.LevelError:
		return ux.Styles.Error.Render(line.Text)
	default:
		return line.Text
	}
}

// runWithTUI executes the plan under the full-screen view. The
// returned error covers failure to start only; the run outcome is in
// the report.
func runWithTUI(ctx context.Context, eng *engine.Engine, stages []engine.Stage, mode engine.Mode) (*engine.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logCh, unsubLogs := eng.SubscribeLogs(512)
	defer unsubLogs()
	progCh, unsubProg := eng.SubscribeProgress(64)
	defer unsubProg()

	doneCh := make(chan doneMsg, 1)
	go func() {
		report, err := eng.Run(runCtx, stages, mode)
		doneCh <- doneMsg{report: report, err: err}
	}()

	p := tea.NewProgram(
		newUpgradeModel(mode, logCh, progCh, doneCh, cancel),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		// The terminal broke under us; wait for the engine so the
		// system is not left with a half-finished stage unreported.
		result := <-doneCh
		if result.err != nil {
			return nil, result.err
		}
		return result.report, nil
	}

	m := final.(upgradeModel)
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}
