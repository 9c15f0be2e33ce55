// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnostic implements the video-capture session controller.
//
// This file holds the async commands the controller launches. Each command
// closes over the generation it was started under and stamps it on its
// reply; the Update loop drops replies whose generation has been retired.
package diagnostic

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visia-health/visia-tui/internal/rtc"
)

// fetchCredentialCmd requests a video token for the patient.
func (c *Controller) fetchCredentialCmd(ctx context.Context, gen uint64) tea.Cmd {
	gateway := c.gateway
	patientID := c.patientID
	timeout := c.config.SetupTimeout
	return func() tea.Msg {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		token, err := gateway.FetchVideoToken(stepCtx, patientID)
		if err != nil {
			return credentialMsg{gen: gen, err: err}
		}
		return credentialMsg{
			gen: gen,
			cred: rtc.Credential{
				Token:  token.Token,
				APIKey: token.APIKey,
				UserID: token.UserID,
			},
			callID: token.CallID,
		}
	}
}

// connectCmd joins the room and enables capture tracks in order: camera
// first, then microphone when configured. Failure at any step reports the
// whole sequence as failed.
func (c *Controller) connectCmd(gen uint64, cred rtc.Credential, roomID string) tea.Cmd {
	room := c.room
	ctx := c.ctx
	timeout := c.config.SetupTimeout
	wantMic := c.config.EnableMicrophone
	return func() tea.Msg {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := room.Join(stepCtx, cred, roomID); err != nil {
			return roomReadyMsg{gen: gen, err: err}
		}
		if err := room.EnableCamera(stepCtx); err != nil {
			return roomReadyMsg{gen: gen, err: err}
		}
		if wantMic {
			if err := room.EnableMicrophone(stepCtx); err != nil {
				return roomReadyMsg{gen: gen, err: err}
			}
		}
		return roomReadyMsg{gen: gen}
	}
}

// tickCmd schedules the next poll tick. Exactly one tick is outstanding at
// a time: each resultMsg (and each non-fatal poll error) schedules the
// next, so polls never pile up behind a slow backend.
func (c *Controller) tickCmd(gen uint64) tea.Cmd {
	return tea.Tick(c.config.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{gen: gen}
	})
}

// pollCmd fetches the diagnostic result once.
func (c *Controller) pollCmd(gen uint64) tea.Cmd {
	gateway := c.gateway
	ctx := c.ctx
	callID := c.callID
	return func() tea.Msg {
		result, err := gateway.FetchDiagnosticResult(ctx, callID)
		if err != nil {
			return resultMsg{gen: gen, err: err}
		}
		return resultMsg{gen: gen, result: result}
	}
}

// transmitDelayCmd holds the completed panel on screen briefly before the
// hand-off to the parent.
func (c *Controller) transmitDelayCmd(gen uint64) tea.Cmd {
	return tea.Tick(c.config.TransmitDelay, func(time.Time) tea.Msg {
		return transmitDoneMsg{gen: gen}
	})
}
