// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the application shell.
//
// This file renders the shell: header, transcript viewport, optional
// diagnostic panel, input area, and status bar.
package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/visia-health/visia-tui/internal/session"
)

// Fixed chrome heights used by layout(). The header and status bar are one
// line each; the input area is bordered, three lines total.
const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
)

func lipglossHeight(s string) int {
	if s == "" {
		return 0
	}
	return lipgloss.Height(s)
}

// View renders the whole application.
func (m Model) View() string {
	if m.quitting {
		return "Take care.\n"
	}
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if m.diag != nil {
		sections = append(sections, m.diag.View())
	}
	sections = append(sections, m.renderInput(), m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("Visia · vision assessment assistant")
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title)
}

func (m Model) renderInput() string {
	switch m.state {
	case StateWaiting:
		return m.theme.InputDisabled.Width(m.width - 2).
			Render(m.spinner.View() + " Waiting for the assistant...")
	case StateUploading:
		return m.theme.InputDisabled.Width(m.width - 2).
			Render(m.spinner.View() + " Uploading photo...")
	case StateCapturing:
		return m.theme.InputDisabled.Width(m.width - 2).
			Render("Assessment in progress. Esc cancels.")
	default:
		return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
	}
}

func (m Model) renderStatusBar() string {
	left := m.theme.StatusKey.Render(stateLabel(m.state))
	elapsed := m.theme.StatusValue.Render(session.FormatElapsed(m.tracker.Elapsed()))

	middle := ""
	if m.state == StateReady && m.tracker.IdleWarning(0) {
		middle = m.theme.StatusValue.Render("still there? the assistant is waiting")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(middle) - lipgloss.Width(elapsed) - 2
	if gap < 1 {
		gap = 1
	}
	bar := left + " " + middle + lipgloss.NewStyle().Width(gap).Render("") + elapsed
	return m.theme.StatusBar.Width(m.width).Render(bar)
}

func stateLabel(s State) string {
	switch s {
	case StateWaiting:
		return "sending"
	case StateUploading:
		return "uploading"
	case StateCapturing:
		return "assessment"
	default:
		return "ready"
	}
}
