// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the plain-terminal fallback.
//
// This file renders assistant output: markdown through glamour when stdout
// is a TTY, plain text otherwise so piped output stays clean.
package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/visia-health/visia-tui/internal/ui/styles"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(styles.Teal)
	noticeStyle  = lipgloss.NewStyle().Foreground(styles.TextSecondary)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Rose)
)

// markdownRenderer renders assistant replies. Nil when initialization
// failed; plain text is printed instead.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

// printReply shows one assistant reply.
func printReply(text string) {
	if IsStdoutTTY() && markdownRenderer != nil {
		if rendered, err := markdownRenderer.Render(text); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(text)
}

func printNotice(text string) {
	fmt.Println(noticeStyle.Render(text))
}

func printWarning(text string) {
	fmt.Println(warningStyle.Render(text))
}

func printError(text string) {
	fmt.Println(errorStyle.Render(text))
}
