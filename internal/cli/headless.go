// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/rtc"
	"github.com/visia-health/visia-tui/internal/telemetry"
	"github.com/visia-health/visia-tui/internal/ui/diagnostic"
)

// headlessOptions configures one blocking diagnostic capture.
type headlessOptions struct {
	gateway      diagnostic.Gateway
	room         rtc.RoomClient
	source       rtc.RoomSource
	patientID    string
	pollInterval time.Duration
	setupTimeout time.Duration
	enableMic    bool
	progress     func(string)
}

func (o *headlessOptions) fill() {
	if o.pollInterval <= 0 {
		o.pollInterval = diagnostic.DefaultConfig().PollInterval
	}
	if o.setupTimeout <= 0 {
		o.setupTimeout = diagnostic.DefaultConfig().SetupTimeout
	}
	if o.progress == nil {
		o.progress = func(string) {}
	}
}

// runHeadlessCapture executes the full diagnostic session synchronously:
// credential fetch, room join, camera enable, result polling. It is the
// line-mode counterpart of the diagnostic controller and follows the same
// lifecycle rules: the room is left exactly once on every exit path, and
// each setup step is bounded by setupTimeout while polling runs until the
// backend completes or ctx is cancelled.
func runHeadlessCapture(ctx context.Context, opts headlessOptions) (json.RawMessage, string, error) {
	opts.fill()

	opts.progress("Preparing secure video session...")
	credCtx, cancel := context.WithTimeout(ctx, opts.setupTimeout)
	token, err := opts.gateway.FetchVideoToken(credCtx, opts.patientID)
	cancel()
	if err != nil {
		return nil, "", fmt.Errorf("fetch video credential: %w", err)
	}

	roomID, err := opts.source.Resolve(token.CallID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve room: %w", err)
	}
	callID := roomID

	cred := rtc.Credential{Token: token.Token, APIKey: token.APIKey, UserID: token.UserID}

	opts.progress("Connecting camera...")
	joinCtx, cancel := context.WithTimeout(ctx, opts.setupTimeout)
	defer cancel()
	if err := opts.room.Join(joinCtx, cred, roomID); err != nil {
		return nil, "", fmt.Errorf("join room: %w", err)
	}
	defer leaveRoom(opts.room)

	if err := opts.room.EnableCamera(joinCtx); err != nil {
		return nil, "", fmt.Errorf("enable camera: %w", err)
	}
	if opts.enableMic {
		if err := opts.room.EnableMicrophone(joinCtx); err != nil {
			return nil, "", fmt.Errorf("enable microphone: %w", err)
		}
	}

	opts.progress("Recording. The assistant is analyzing the video feed; press Ctrl-C to cancel.")

	ticker := time.NewTicker(opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-ticker.C:
		}

		result, err := opts.gateway.FetchDiagnosticResult(ctx, callID)
		if err != nil {
			if agent.IsSetupFailure(err) {
				return nil, "", fmt.Errorf("poll diagnostic result: %w", err)
			}
			// Transient poll failures keep the cadence; the capture is
			// still running server-side.
			telemetry.L().Warn().Err(err).Str("call_id", callID).Msg("result poll failed")
			continue
		}
		if result.Complete() {
			opts.progress("Analysis complete.")
			return result.Data, callID, nil
		}
	}
}

func leaveRoom(room rtc.RoomClient) {
	if err := room.Leave(); err != nil {
		telemetry.L().Warn().Err(err).Msg("room leave failed")
	}
}
