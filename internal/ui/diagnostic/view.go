// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnostic implements the video-capture session controller.
//
// This file renders the session panel shown beneath the transcript while a
// capture is running.
package diagnostic

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/visia-health/visia-tui/internal/ui/components"
)

// View renders the panel for the current phase. Terminal phases other than
// Error render nothing; the parent unmounts the panel on the hand-off
// message.
func (c *Controller) View() string {
	switch c.phase {
	case PhaseFetchingCredential:
		return c.panel(c.spinner.View() + " Preparing secure video session...")
	case PhaseConnecting:
		return c.panel(c.spinner.View() + " Connecting camera...")
	case PhaseActive:
		body := lipgloss.JoinVertical(lipgloss.Left,
			c.theme.DiagActive.Render("● Recording"),
			"Follow the assistant's instructions.",
			c.theme.DiagCancelHint.Render(c.spinner.View()+" Analyzing    esc cancel"),
		)
		return c.panel(body)
	case PhaseTransmitting:
		return c.panel(c.spinner.View() + " Transmitting results...")
	case PhaseError:
		box := components.ErrorBox{
			Title:    c.errTitle,
			Detail:   c.errDetail,
			CanRetry: true,
		}
		return box.Render(c.theme, c.width)
	default:
		return ""
	}
}

func (c *Controller) panel(body string) string {
	title := c.theme.DiagTitle.Render("Vision Assessment")
	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	style := c.theme.DiagPanel
	if c.width > 0 {
		style = style.MaxWidth(c.width)
	}
	return style.Render(content)
}
