// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the plain-terminal fallback: a line-mode interface to the
// same backend used when stdout is not a TTY or the user asks for it.
// Diagnostic captures run headless here, printing progress lines instead
// of mounting a panel.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/config"
	"github.com/visia-health/visia-tui/internal/storage"
)

// IsStdoutTTY reports whether stdout is an interactive terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStdinTTY reports whether stdin is an interactive terminal.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Run drives the line-mode session until the user quits or the process is
// signalled. archive may be nil.
func Run(cfg *config.Config, client *agent.Client, archive *storage.Archive) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repl, err := newREPL(cfg, client, archive)
	if err != nil {
		return err
	}
	defer repl.Close()

	return repl.Loop(ctx)
}
