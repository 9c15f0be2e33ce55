// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the visia TUI.
package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/visia-health/visia-tui/internal/ui/styles"
)

// ErrorBox renders an inline error panel with the retry/cancel affordance.
// Diagnostic setup and permission failures land here; chat failures are
// rendered as transcript turns instead.
type ErrorBox struct {
	Title    string
	Detail   string
	CanRetry bool
}

// Render produces the visual form of the error panel.
func (e ErrorBox) Render(theme *styles.Theme, width int) string {
	title := theme.ErrorTitle.Render("✗ " + e.Title)
	detail := theme.ErrorDetail.Render(e.Detail)

	action := "esc cancel"
	if e.CanRetry {
		action = "r retry · esc cancel"
	}
	hint := theme.ErrorAction.Render(action)

	body := lipgloss.JoinVertical(lipgloss.Left, title, detail, "", hint)
	return theme.ErrorBox.MaxWidth(width).Render(body)
}
