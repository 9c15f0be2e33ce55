// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the visia TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/visia-health/visia-tui/internal/model"
	"github.com/visia-health/visia-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// AssistantIcon identifies assistant turns in the transcript.
const AssistantIcon = "◉"

// MessageRenderer renders a single chat turn. It is a pure function of the
// turn and the layout width: no state, no side effects. Assistant turns sit
// on the left with the identifying icon, user turns on the right; literal
// whitespace and line breaks in the content are preserved.
type MessageRenderer struct {
	theme *styles.Theme
	width int
}

// NewMessageRenderer creates a message renderer for the given theme.
func NewMessageRenderer(theme *styles.Theme, width int) *MessageRenderer {
	if width <= 0 {
		width = 80
	}
	return &MessageRenderer{theme: theme, width: width}
}

// SetWidth updates the layout width.
func (r *MessageRenderer) SetWidth(width int) {
	if width > 0 {
		r.width = width
	}
}

// Render produces the visual form of one turn.
func (r *MessageRenderer) Render(msg *model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		return r.renderUser(msg)
	case model.RoleAssistant:
		return r.renderAssistant(msg)
	default:
		return r.renderNotice(msg)
	}
}

func (r *MessageRenderer) renderUser(msg *model.Message) string {
	content := msg.Content
	if content == "" && msg.ImageID != "" {
		content = "[photo attached]"
	}

	bubble := r.theme.UserBubble.MaxWidth(r.bubbleWidth()).Render(content)
	label := r.theme.RoleLabel.Render(msg.Role.DisplayName())

	block := lipgloss.JoinVertical(lipgloss.Right, label, bubble)
	return lipgloss.PlaceHorizontal(r.width, lipgloss.Right, block)
}

func (r *MessageRenderer) renderAssistant(msg *model.Message) string {
	bubble := r.theme.AssistantBubble.MaxWidth(r.bubbleWidth()).Render(msg.Content)
	label := r.theme.RoleLabel.Render(AssistantIcon + " " + msg.Role.DisplayName())

	return lipgloss.JoinVertical(lipgloss.Left, label, bubble)
}

func (r *MessageRenderer) renderNotice(msg *model.Message) string {
	notice := r.theme.NoticeBubble.Render(msg.Content)
	return lipgloss.PlaceHorizontal(r.width, lipgloss.Center, notice)
}

// bubbleWidth leaves room for the margin that pushes bubbles off the
// opposite edge.
func (r *MessageRenderer) bubbleWidth() int {
	w := r.width - 6
	if w < 20 {
		w = 20
	}
	return w
}

// RenderHistory renders a full transcript with a blank line between turns.
func (r *MessageRenderer) RenderHistory(msgs []*model.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, r.Render(msg))
	}
	return strings.Join(parts, "\n\n")
}
