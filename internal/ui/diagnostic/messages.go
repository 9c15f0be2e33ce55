// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnostic implements the video-capture session controller.
//
// This file defines the Bubble Tea message types the controller exchanges
// with its commands and with the parent chat model. Internal messages carry
// the generation they belong to so that replies from a torn-down session
// are discarded instead of mutating a newer one.
package diagnostic

import (
	"encoding/json"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/rtc"
)

// =============================================================================
// INTERNAL LIFECYCLE MESSAGES
// =============================================================================

// credentialMsg delivers the outcome of the credential fetch.
type credentialMsg struct {
	gen    uint64
	cred   rtc.Credential
	callID string
	err    error
}

// roomReadyMsg delivers the outcome of the join/enable-tracks sequence.
type roomReadyMsg struct {
	gen uint64
	err error
}

// pollTickMsg fires when the poll interval elapses. The next tick is only
// scheduled once the previous poll has produced a resultMsg, so polls never
// overlap.
type pollTickMsg struct {
	gen uint64
}

// resultMsg delivers one diagnostic-result poll response.
type resultMsg struct {
	gen    uint64
	result *agent.DiagnosticResult
	err    error
}

// transmitDoneMsg fires after the brief hand-off pause that follows a
// complete result, letting the user read the closing status line before the
// panel is dismissed.
type transmitDoneMsg struct {
	gen uint64
}

// =============================================================================
// PARENT-FACING MESSAGES
// =============================================================================

// CompletedMsg tells the parent that the capture session finished and
// analysis produced results. The parent forwards Data to the assistant as a
// synthetic turn.
type CompletedMsg struct {
	TestType string
	CallID   string
	Data     json.RawMessage
}

// CancelledMsg tells the parent that the user abandoned the session before
// results arrived. Capture hardware has already been released.
type CancelledMsg struct {
	TestType string
}
