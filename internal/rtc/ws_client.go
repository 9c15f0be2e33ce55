// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rtc wraps the hosted real-time video service the capture flow
// joins.
package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visia-health/visia-tui/internal/telemetry"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotJoined indicates a track operation before a successful Join.
	ErrNotJoined = errors.New("not joined to a room")
	// ErrPermissionDenied indicates the service refused hardware capture.
	ErrPermissionDenied = errors.New("capture permission denied")
)

// =============================================================================
// SIGNALLING MESSAGES
// =============================================================================

// controlFrame is the signalling envelope exchanged with the room service.
type controlFrame struct {
	Type  string `json:"type"`
	Track string `json:"track,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	frameJoin        = "join"
	frameJoined      = "joined"
	frameEnableTrack = "enable_track"
	frameTrackReady  = "track_ready"
	frameDenied      = "denied"
	frameLeave       = "leave"

	trackCamera     = "camera"
	trackMicrophone = "microphone"
)

// =============================================================================
// WEBSOCKET ROOM CLIENT
// =============================================================================

// WSRoomClient speaks the room service's websocket signalling protocol. It
// implements RoomClient; one instance handles one room membership.
type WSRoomClient struct {
	// SignalURL is the websocket endpoint of the room service, e.g.
	// wss://rt.example.com/signal.
	SignalURL string

	// HandshakeTimeout bounds the websocket dial (default: 10s).
	HandshakeTimeout time.Duration

	// AckTimeout bounds how long to wait for a signalling reply
	// (default: 10s).
	AckTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	joined bool
	left   bool
}

// NewWSRoomClient creates a websocket room client for the given signalling
// endpoint.
func NewWSRoomClient(signalURL string) *WSRoomClient {
	return &WSRoomClient{
		SignalURL:        signalURL,
		HandshakeTimeout: 10 * time.Second,
		AckTimeout:       10 * time.Second,
	}
}

// Join dials the signalling endpoint and enters the room.
func (c *WSRoomClient) Join(ctx context.Context, cred Credential, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.New("already joined")
	}

	u, err := url.Parse(c.SignalURL)
	if err != nil {
		return fmt.Errorf("invalid signal url: %w", err)
	}
	q := u.Query()
	q.Set("room", roomID)
	q.Set("user_id", cred.UserID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)
	header.Set("X-Api-Key", cred.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: c.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("room join rejected: %w", err)
		}
		return fmt.Errorf("room join failed: %w", err)
	}
	c.conn = conn
	c.left = false

	if err := c.roundTrip(ctx, controlFrame{Type: frameJoin}, frameJoined); err != nil {
		conn.Close()
		c.conn = nil
		return err
	}

	c.joined = true
	telemetry.L().Debug().Str("room", roomID).Msg("joined capture room")
	return nil
}

// EnableCamera starts the local camera track.
func (c *WSRoomClient) EnableCamera(ctx context.Context) error {
	return c.enableTrack(ctx, trackCamera)
}

// EnableMicrophone starts the local microphone track.
func (c *WSRoomClient) EnableMicrophone(ctx context.Context) error {
	return c.enableTrack(ctx, trackMicrophone)
}

func (c *WSRoomClient) enableTrack(ctx context.Context, track string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.joined {
		return ErrNotJoined
	}

	err := c.roundTrip(ctx, controlFrame{Type: frameEnableTrack, Track: track}, frameTrackReady)
	if errors.Is(err, ErrPermissionDenied) {
		return fmt.Errorf("%s: %w", track, ErrPermissionDenied)
	}
	return err
}

// Leave releases the room membership and every enabled track. Safe to call
// in any state and more than once.
func (c *WSRoomClient) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.left || c.conn == nil {
		c.left = true
		return nil
	}
	c.left = true
	c.joined = false

	// Best effort: the service releases tracks server-side when the
	// membership closes, so a failed write must not block teardown.
	deadline := time.Now().Add(2 * time.Second)
	c.conn.SetWriteDeadline(deadline)
	c.conn.WriteJSON(controlFrame{Type: frameLeave})
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends a control frame and waits for the expected reply type.
// Callers must hold c.mu.
func (c *WSRoomClient) roundTrip(ctx context.Context, out controlFrame, want string) error {
	deadline := time.Now().Add(c.AckTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(out); err != nil {
		return fmt.Errorf("signalling write failed: %w", err)
	}

	c.conn.SetReadDeadline(deadline)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("signalling read failed: %w", err)
		}

		var in controlFrame
		if err := json.Unmarshal(data, &in); err != nil {
			continue // skip non-control traffic
		}

		switch in.Type {
		case want:
			return nil
		case frameDenied:
			return ErrPermissionDenied
		}
	}
}
