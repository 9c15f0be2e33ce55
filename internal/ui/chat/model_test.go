// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/model"
	"github.com/visia-health/visia-tui/internal/rtc"
	"github.com/visia-health/visia-tui/internal/ui/diagnostic"
	"github.com/visia-health/visia-tui/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeGateway struct {
	mu        sync.Mutex
	chatReqs  []agent.ChatRequest
	chatReply *agent.ChatReply
	chatErr   error
	uploadID  string
	uploadErr error
	token     *agent.VideoToken
	result    *agent.DiagnosticResult
}

func (g *fakeGateway) SendChat(_ context.Context, req agent.ChatRequest) (*agent.ChatReply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chatReqs = append(g.chatReqs, req)
	if g.chatErr != nil {
		return nil, g.chatErr
	}
	reply := *g.chatReply
	return &reply, nil
}

func (g *fakeGateway) UploadImage(context.Context, string, io.Reader) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		return "", g.uploadErr
	}
	return g.uploadID, nil
}

func (g *fakeGateway) FetchVideoToken(context.Context, string) (*agent.VideoToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reply := *g.token
	return &reply, nil
}

func (g *fakeGateway) FetchDiagnosticResult(context.Context, string) (*agent.DiagnosticResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.result == nil {
		return &agent.DiagnosticResult{Status: agent.StatusPending}, nil
	}
	return g.result, nil
}

func (g *fakeGateway) sentRequests() []agent.ChatRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]agent.ChatRequest, len(g.chatReqs))
	copy(out, g.chatReqs)
	return out
}

type fakeRoom struct {
	mu       sync.Mutex
	joinedID string
	joins    int
	leaves   int
}

func (r *fakeRoom) Join(_ context.Context, _ rtc.Credential, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins++
	r.joinedID = roomID
	return nil
}

func (r *fakeRoom) EnableCamera(context.Context) error     { return nil }
func (r *fakeRoom) EnableMicrophone(context.Context) error { return nil }

func (r *fakeRoom) Leave() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves++
	return nil
}

type fakeArchive struct {
	mu    sync.Mutex
	saves int
	last  string
}

func (a *fakeArchive) SaveResult(_ context.Context, callID, _ string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saves++
	a.last = callID
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(gw *fakeGateway, room *fakeRoom, archive Archiver) Model {
	return New(gw, styles.NewTheme(), Options{
		UserID:      "patient-1",
		RoomFactory: func() rtc.RoomClient { return room },
		DiagConfig:  diagnostic.DefaultConfig(),
		Archive:     archive,
	})
}

func drain(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, sub := range batch {
			out = append(out, drain(t, sub)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// feed runs cmd and pushes the first matching message back into the model,
// returning the updated model and the follow-up command.
func feed(t *testing.T, m Model, cmd tea.Cmd, want func(tea.Msg) bool) (Model, tea.Cmd) {
	t.Helper()
	for _, msg := range drain(t, cmd) {
		if want(msg) {
			next, c := m.Update(msg)
			return next.(Model), c
		}
	}
	t.Fatal("expected message not produced")
	return m, nil
}

func submitText(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func isReply(msg tea.Msg) bool {
	_, ok := msg.(replyMsg)
	return ok
}

// isDiagLifecycle matches the controller's internal lifecycle messages,
// skipping spinner animation ticks.
func isDiagLifecycle(msg tea.Msg) bool {
	_, tick := msg.(spinner.TickMsg)
	return !tick
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestSendText_NoPanelWithoutVideoFlag(t *testing.T) {
	gw := &fakeGateway{chatReply: &agent.ChatReply{Response: "Tell me more about the flashes."}}
	m := newTestModel(gw, &fakeRoom{}, nil)

	m, cmd := submitText(t, m, "I see flashes of light")
	if m.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", m.State())
	}

	m, _ = feed(t, m, cmd, isReply)

	history := m.Conversation().History()
	if len(history) != 2 {
		t.Fatalf("conversation has %d turns, want 2", len(history))
	}
	if history[0].Role != model.RoleUser || history[0].Content != "I see flashes of light" {
		t.Errorf("first turn = %v %q", history[0].Role, history[0].Content)
	}
	if history[1].Role != model.RoleAssistant {
		t.Errorf("second turn role = %v, want assistant", history[1].Role)
	}
	if m.Vision().Active || m.Diagnostic() != nil {
		t.Error("panel must not mount when video_stream_active is false")
	}
	if m.State() != StateReady {
		t.Errorf("state = %v, want ready", m.State())
	}

	reqs := gw.sentRequests()
	if len(reqs) != 1 || reqs[0].Message == nil || *reqs[0].Message != "I see flashes of light" {
		t.Errorf("unexpected chat requests: %+v", reqs)
	}
	if reqs[0].ThreadID != m.Conversation().ThreadID {
		t.Error("chat request must carry the conversation thread id")
	}
}

func TestVideoFlag_MountsPanelWithProvidedRoom(t *testing.T) {
	gw := &fakeGateway{
		chatReply: &agent.ChatReply{
			Response:           "Let's test your pupils",
			VideoStreamActive:  true,
			FunctionalTestType: "plr_test",
			CallID:             "abc123",
		},
		token: &agent.VideoToken{Token: "tok"},
	}
	room := &fakeRoom{}
	m := newTestModel(gw, room, nil)

	m, cmd := submitText(t, m, "my eyes hurt")
	m, diagCmd := feed(t, m, cmd, isReply)

	vision := m.Vision()
	if !vision.Active || vision.Type != "plr_test" || vision.SessionID != "abc123" {
		t.Fatalf("vision state = %+v", vision)
	}
	if m.Diagnostic() == nil || m.State() != StateCapturing {
		t.Fatal("panel must be mounted and capturing")
	}

	// Walk the controller through credential and join via the shell's
	// message forwarding.
	m, joinCmd := feed(t, m, diagCmd, isDiagLifecycle)
	for _, msg := range drain(t, joinCmd) {
		next, _ := m.Update(msg)
		m = next.(Model)
	}

	if room.joinedID != "abc123" {
		t.Errorf("joined room %q, want the backend-supplied abc123", room.joinedID)
	}
}

func TestCancelMidSetup_AppendsAssistantTurn(t *testing.T) {
	gw := &fakeGateway{
		chatReply: &agent.ChatReply{
			Response:           "Let's test your pupils",
			VideoStreamActive:  true,
			FunctionalTestType: "plr_test",
			CallID:             "abc123",
		},
		token: &agent.VideoToken{Token: "tok"},
	}
	room := &fakeRoom{}
	m := newTestModel(gw, room, nil)

	m, cmd := submitText(t, m, "ready")
	m, diagCmd := feed(t, m, cmd, isReply)

	// Deliver the credential so the controller is mid-Connecting.
	m, _ = feed(t, m, diagCmd, isDiagLifecycle)
	if m.Diagnostic().Phase() != diagnostic.PhaseConnecting {
		t.Fatalf("phase = %v, want connecting", m.Diagnostic().Phase())
	}

	next, cancelCmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	m, _ = feed(t, m, cancelCmd, func(msg tea.Msg) bool {
		_, ok := msg.(diagnostic.CancelledMsg)
		return ok
	})

	if m.Diagnostic() != nil || m.Vision().Active {
		t.Error("panel must unmount on cancel")
	}
	if m.State() != StateReady {
		t.Errorf("state = %v, want ready", m.State())
	}
	room.mu.Lock()
	leaves := room.leaves
	room.mu.Unlock()
	if leaves != 1 {
		t.Errorf("room released %d times, want exactly 1", leaves)
	}

	last := m.Conversation().Last()
	if last.Role != model.RoleAssistant || !strings.HasPrefix(last.Content, "Diagnostic scan cancelled") {
		t.Errorf("last turn = %v %q, want the cancellation assistant turn", last.Role, last.Content)
	}
}

func TestUpload_SingleSendWithNullMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eye.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatal(err)
	}

	gw := &fakeGateway{
		uploadID:  "img_9",
		chatReply: &agent.ChatReply{Response: "Thanks, reviewing the photo now."},
	}
	m := newTestModel(gw, &fakeRoom{}, nil)

	m, uploadCmd := submitText(t, m, "/attach "+path)
	if m.State() != StateUploading {
		t.Fatalf("state = %v, want uploading", m.State())
	}

	// A second submit while the upload is outstanding must be ignored.
	blocked, blockedCmd := submitText(t, m, "and this too")
	if blockedCmd != nil {
		t.Error("submit during upload must produce no command")
	}
	m = blocked

	m, sendCmd := feed(t, m, uploadCmd, func(msg tea.Msg) bool {
		_, ok := msg.(uploadedMsg)
		return ok
	})
	if m.State() != StateWaiting {
		t.Fatalf("state after upload = %v, want waiting", m.State())
	}

	m, _ = feed(t, m, sendCmd, isReply)

	reqs := gw.sentRequests()
	if len(reqs) != 1 {
		t.Fatalf("%d chat requests sent, want exactly 1", len(reqs))
	}
	if reqs[0].ImageID != "img_9" {
		t.Errorf("ImageID = %q, want img_9", reqs[0].ImageID)
	}
	if reqs[0].Message != nil {
		t.Errorf("Message = %v, want null for an attachment-only turn", *reqs[0].Message)
	}
	if m.State() != StateReady {
		t.Errorf("state = %v, want ready after the reply", m.State())
	}
}

// =============================================================================
// RESULT HAND-OFF TESTS
// =============================================================================

func TestDiagCompleted_ForwardsResultsAndArchives(t *testing.T) {
	gw := &fakeGateway{chatReply: &agent.ChatReply{Response: "Your pupil response looks normal."}}
	archive := &fakeArchive{}
	m := newTestModel(gw, &fakeRoom{}, archive)

	payload := json.RawMessage(`{"latency_ms": 412}`)
	next, cmd := m.Update(diagnostic.CompletedMsg{
		TestType: "plr_test",
		CallID:   "abc123",
		Data:     payload,
	})
	m = next.(Model)

	if m.State() != StateWaiting {
		t.Fatalf("state = %v, want waiting", m.State())
	}
	last := m.Conversation().Last()
	if last.Role != model.RoleUser || last.TestType != "plr_test" {
		t.Errorf("synthetic turn = %v testType=%q", last.Role, last.TestType)
	}

	for _, msg := range drain(t, cmd) {
		next, _ := m.Update(msg)
		m = next.(Model)
	}

	reqs := gw.sentRequests()
	if len(reqs) != 1 {
		t.Fatalf("%d chat requests, want 1", len(reqs))
	}
	if reqs[0].FunctionalTestType != "plr_test" {
		t.Errorf("FunctionalTestType = %q", reqs[0].FunctionalTestType)
	}
	if string(reqs[0].FunctionalTestResults) != string(payload) {
		t.Errorf("FunctionalTestResults = %s", reqs[0].FunctionalTestResults)
	}
	if reqs[0].Message != nil {
		t.Error("results turn must carry a null message")
	}

	archive.mu.Lock()
	defer archive.mu.Unlock()
	if archive.saves != 1 || archive.last != "abc123" {
		t.Errorf("archive saves=%d last=%q", archive.saves, archive.last)
	}
}

func TestChatFailure_BecomesAssistantTurn(t *testing.T) {
	gw := &fakeGateway{chatErr: agent.ErrUnreachable}
	m := newTestModel(gw, &fakeRoom{}, nil)

	m, cmd := submitText(t, m, "hello?")
	m, _ = feed(t, m, cmd, isReply)

	last := m.Conversation().Last()
	if last.Role != model.RoleAssistant {
		t.Fatalf("failure turn role = %v, want assistant", last.Role)
	}
	if !strings.Contains(last.Content, "couldn't reach") {
		t.Errorf("failure turn = %q", last.Content)
	}
	if m.State() != StateReady {
		t.Errorf("state = %v, want ready so the user can retry", m.State())
	}
}

func TestOrdering_PreservedAcrossTurns(t *testing.T) {
	gw := &fakeGateway{chatReply: &agent.ChatReply{Response: "noted"}}
	m := newTestModel(gw, &fakeRoom{}, nil)

	for _, text := range []string{"one", "two", "three"} {
		var cmd tea.Cmd
		m, cmd = submitText(t, m, text)
		m, _ = feed(t, m, cmd, isReply)
	}

	history := m.Conversation().History()
	if len(history) != 6 {
		t.Fatalf("history has %d turns, want 6", len(history))
	}
	wantUsers := []string{"one", "two", "three"}
	for i, want := range wantUsers {
		if got := history[i*2].Content; got != want {
			t.Errorf("turn %d = %q, want %q", i*2, got, want)
		}
	}
}
