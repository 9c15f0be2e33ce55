// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/rtc"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeGateway struct {
	mu sync.Mutex

	token    *agent.VideoToken
	tokenErr error

	results   []pollStep
	pollCalls int
}

type pollStep struct {
	result *agent.DiagnosticResult
	err    error
}

func (g *fakeGateway) FetchVideoToken(ctx context.Context, userID string) (*agent.VideoToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tokenErr != nil {
		return nil, g.tokenErr
	}
	return g.token, nil
}

func (g *fakeGateway) FetchDiagnosticResult(ctx context.Context, callID string) (*agent.DiagnosticResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	step := g.results[0]
	if len(g.results) > 1 {
		g.results = g.results[1:]
	}
	g.pollCalls++
	return step.result, step.err
}

func (g *fakeGateway) polls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pollCalls
}

type fakeRoom struct {
	mu sync.Mutex

	joinedRoom string
	joinErr    error
	cameraErr  error
	joins      int
	leaves     int
}

func (r *fakeRoom) Join(ctx context.Context, cred rtc.Credential, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.joinErr != nil {
		return r.joinErr
	}
	r.joins++
	r.joinedRoom = roomID
	return nil
}

func (r *fakeRoom) EnableCamera(ctx context.Context) error { return r.cameraErr }

func (r *fakeRoom) EnableMicrophone(ctx context.Context) error { return nil }

func (r *fakeRoom) Leave() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves++
	return nil
}

func (r *fakeRoom) leaveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaves
}

func testOpts(g *fakeGateway, room *fakeRoom, src rtc.RoomSource) headlessOptions {
	return headlessOptions{
		gateway:      g,
		room:         room,
		source:       src,
		patientID:    "patient-1",
		pollInterval: time.Millisecond,
		setupTimeout: time.Second,
	}
}

// =============================================================================
// HEADLESS CAPTURE TESTS
// =============================================================================

func TestHeadless_CompletesAndLeavesOnce(t *testing.T) {
	payload := json.RawMessage(`{"latency_ms": 240}`)
	g := &fakeGateway{
		token: &agent.VideoToken{Token: "tok", CallID: "call-42"},
		results: []pollStep{
			{result: &agent.DiagnosticResult{Status: agent.StatusPending}},
			{result: &agent.DiagnosticResult{Status: agent.StatusComplete, Data: payload}},
		},
	}
	room := &fakeRoom{}

	data, callID, err := runHeadlessCapture(context.Background(), testOpts(g, room, rtc.SelfAllocatedRoom()))
	if err != nil {
		t.Fatalf("runHeadlessCapture: %v", err)
	}
	if callID != "call-42" {
		t.Errorf("callID = %q, want %q", callID, "call-42")
	}
	if string(data) != string(payload) {
		t.Errorf("data = %s, want %s", data, payload)
	}
	if room.joinedRoom != "call-42" {
		t.Errorf("joined room %q, want the credential-assigned id", room.joinedRoom)
	}
	if n := room.leaveCount(); n != 1 {
		t.Errorf("Leave called %d times, want 1", n)
	}
}

func TestHeadless_ProvidedRoomWinsOverSilentCredential(t *testing.T) {
	g := &fakeGateway{
		token: &agent.VideoToken{Token: "tok"},
		results: []pollStep{
			{result: &agent.DiagnosticResult{Status: agent.StatusComplete, Data: json.RawMessage(`{}`)}},
		},
	}
	room := &fakeRoom{}

	_, callID, err := runHeadlessCapture(context.Background(), testOpts(g, room, rtc.ProvidedRoom("abc123")))
	if err != nil {
		t.Fatalf("runHeadlessCapture: %v", err)
	}
	if callID != "abc123" {
		t.Errorf("callID = %q, want the room id from the chat reply", callID)
	}
}

func TestHeadless_RoomMismatchFailsBeforeJoin(t *testing.T) {
	g := &fakeGateway{
		token: &agent.VideoToken{Token: "tok", CallID: "other-room"},
	}
	room := &fakeRoom{}

	_, _, err := runHeadlessCapture(context.Background(), testOpts(g, room, rtc.ProvidedRoom("abc123")))
	if !errors.Is(err, rtc.ErrRoomMismatch) {
		t.Fatalf("err = %v, want ErrRoomMismatch", err)
	}
	if room.joins != 0 {
		t.Error("should not join when the room id is contradicted")
	}
	if n := room.leaveCount(); n != 0 {
		t.Errorf("Leave called %d times before join, want 0", n)
	}
}

func TestHeadless_CameraFailureStillLeaves(t *testing.T) {
	g := &fakeGateway{
		token: &agent.VideoToken{Token: "tok", CallID: "call-7"},
	}
	room := &fakeRoom{cameraErr: errors.New("camera busy")}

	_, _, err := runHeadlessCapture(context.Background(), testOpts(g, room, rtc.SelfAllocatedRoom()))
	if err == nil {
		t.Fatal("expected camera failure")
	}
	if n := room.leaveCount(); n != 1 {
		t.Errorf("Leave called %d times after failed setup, want 1", n)
	}
}

func TestHeadless_TransientPollErrorKeepsPolling(t *testing.T) {
	g := &fakeGateway{
		token: &agent.VideoToken{Token: "tok", CallID: "call-9"},
		results: []pollStep{
			{err: &agent.ClientError{Kind: agent.ErrKindNetwork, Message: "blip"}},
			{result: &agent.DiagnosticResult{Status: agent.StatusComplete, Data: json.RawMessage(`{}`)}},
		},
	}
	room := &fakeRoom{}

	_, _, err := runHeadlessCapture(context.Background(), testOpts(g, room, rtc.SelfAllocatedRoom()))
	if err != nil {
		t.Fatalf("transient poll error should not abort: %v", err)
	}
	if g.polls() < 2 {
		t.Errorf("polls = %d, want at least 2", g.polls())
	}
}

func TestHeadless_CancelStopsPollingAndLeaves(t *testing.T) {
	g := &fakeGateway{
		token: &agent.VideoToken{Token: "tok", CallID: "call-5"},
		results: []pollStep{
			{result: &agent.DiagnosticResult{Status: agent.StatusPending}},
		},
	}
	room := &fakeRoom{}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, _, err := runHeadlessCapture(ctx, testOpts(g, room, rtc.SelfAllocatedRoom()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := room.leaveCount(); n != 1 {
		t.Errorf("Leave called %d times after cancel, want 1", n)
	}
}
