// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the application shell.
//
// This file holds the async commands the shell launches against the
// gateway. Each command arms the request guard with its cancel function so
// quitting aborts the in-flight request.
package chat

import (
	"context"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/ui/diagnostic"
)

// archiveTimeout bounds the local archive write.
const archiveTimeout = 5 * time.Second

// sendChatCmd posts one chat turn and reports the reply.
func (m Model) sendChatCmd(req agent.ChatRequest) tea.Cmd {
	gateway := m.gateway
	guard := m.guard
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		guard.arm(cancel)

		reply, err := gateway.SendChat(ctx, req)
		if err != nil {
			return replyMsg{err: err}
		}
		return replyMsg{reply: reply}
	}
}

// uploadCmd reads the file at path and uploads it. The image/non-image
// check happens inside the gateway before any bytes leave the machine.
func (m Model) uploadCmd(path string) tea.Cmd {
	gateway := m.gateway
	guard := m.guard
	return func() tea.Msg {
		name := filepath.Base(path)

		f, err := os.Open(path)
		if err != nil {
			return uploadedMsg{filename: name, err: &agent.ClientError{
				Kind:    agent.ErrKindUnknown,
				Message: "could not open " + path,
				Cause:   err,
			}}
		}
		defer f.Close()

		ctx, cancel := context.WithCancel(context.Background())
		guard.arm(cancel)

		imageID, err := gateway.UploadImage(ctx, name, f)
		if err != nil {
			return uploadedMsg{filename: name, err: err}
		}
		return uploadedMsg{imageID: imageID, filename: name}
	}
}

// archiveCmd writes a completed diagnostic result to the local archive.
func (m Model) archiveCmd(msg diagnostic.CompletedMsg) tea.Cmd {
	archive := m.archive
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		return archivedMsg{err: archive.SaveResult(ctx, msg.CallID, msg.TestType, msg.Data)}
	}
}
