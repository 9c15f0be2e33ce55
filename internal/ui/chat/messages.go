// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the application shell.
//
// This file defines the Bubble Tea messages the shell's commands produce.
package chat

import (
	"github.com/visia-health/visia-tui/internal/agent"
)

// replyMsg delivers the backend's answer to a chat send.
type replyMsg struct {
	reply *agent.ChatReply
	err   error
}

// uploadedMsg delivers the outcome of an image upload. On success the chat
// turn referencing imageID goes out next.
type uploadedMsg struct {
	imageID  string
	filename string
	err      error
}

// archivedMsg reports whether a completed diagnostic result was written to
// the local archive. Failures are logged, never surfaced as chat turns.
type archivedMsg struct {
	err error
}
