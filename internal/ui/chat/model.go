// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the application shell.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/model"
	"github.com/visia-health/visia-tui/internal/rtc"
	"github.com/visia-health/visia-tui/internal/session"
	"github.com/visia-health/visia-tui/internal/telemetry"
	"github.com/visia-health/visia-tui/internal/ui/components"
	"github.com/visia-health/visia-tui/internal/ui/diagnostic"
	"github.com/visia-health/visia-tui/internal/ui/styles"
	"github.com/visia-health/visia-tui/internal/util"
)

// =============================================================================
// GATEWAY AND ARCHIVE INTERFACES
// =============================================================================

// Gateway is everything the shell needs from the backend client.
// *agent.Client satisfies it.
type Gateway interface {
	SendChat(ctx context.Context, req agent.ChatRequest) (*agent.ChatReply, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
	diagnostic.Gateway
}

// Archiver stores completed diagnostic results locally. Optional; a nil
// Archiver disables archiving.
type Archiver interface {
	SaveResult(ctx context.Context, callID, testType string, data []byte) error
}

// =============================================================================
// SHELL STATE
// =============================================================================

// State is the shell's input-gating state.
type State int

const (
	// StateReady accepts input.
	StateReady State = iota
	// StateWaiting has a chat send outstanding; input is disabled.
	StateWaiting
	// StateUploading has an image upload outstanding; input is disabled.
	StateUploading
	// StateCapturing has the diagnostic panel mounted; keys go to it.
	StateCapturing
)

// VisionTaskState mirrors the backend's view of the running assessment.
// Active is true exactly while the diagnostic panel is mounted.
type VisionTaskState struct {
	Active    bool
	Type      string
	SessionID string
}

// =============================================================================
// MODEL
// =============================================================================

// Options configures the shell beyond its required collaborators.
type Options struct {
	// UserID identifies the patient to the backend. Generated when empty.
	UserID string
	// DiagConfig tunes the diagnostic controller; nil uses defaults.
	DiagConfig *diagnostic.Config
	// RoomFactory builds the room client for each capture session.
	RoomFactory func() rtc.RoomClient
	// Archive, when set, receives completed diagnostic results.
	Archive Archiver
}

// Model is the Bubble Tea model for the whole application.
type Model struct {
	state   State
	theme   *styles.Theme
	width   int
	height  int
	ready   bool
	keyMap  KeyMap
	tracker *session.Tracker

	conversation *model.Conversation
	vision       VisionTaskState

	gateway     Gateway
	guard       *requestGuard
	userID      string
	roomFactory func() rtc.RoomClient
	diagConfig  *diagnostic.Config
	archive     Archiver

	// diag is non-nil exactly while vision.Active.
	diag *diagnostic.Controller

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *components.MessageRenderer

	quitting bool
}

// New constructs the application shell.
func New(gateway Gateway, theme *styles.Theme, opts Options) Model {
	input := textinput.New()
	input.Placeholder = "Describe your symptoms, or /help"
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	userID := opts.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	roomFactory := opts.RoomFactory
	if roomFactory == nil {
		roomFactory = func() rtc.RoomClient { return rtc.NewWSRoomClient("") }
	}

	return Model{
		state:        StateReady,
		theme:        theme,
		keyMap:       DefaultKeyMap(),
		tracker:      session.NewTracker(),
		conversation: model.NewConversation(),
		gateway:      gateway,
		guard:        newRequestGuard(),
		userID:       userID,
		roomFactory:  roomFactory,
		diagConfig:   opts.DiagConfig,
		archive:      opts.Archive,
		input:        input,
		spinner:      sp,
		renderer:     components.NewMessageRenderer(theme, 80),
	}
}

// Conversation exposes the transcript, mainly for tests and export.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// Vision exposes the current vision-task state.
func (m Model) Vision() VisionTaskState {
	return m.vision
}

// State exposes the input-gating state.
func (m Model) State() State {
	return m.state
}

// Diagnostic returns the mounted capture controller, or nil.
func (m Model) Diagnostic() *diagnostic.Controller {
	return m.diag
}

// Init starts cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update is the shell's message loop. Unrecognized messages are forwarded
// to the mounted diagnostic controller, which is how its internal
// lifecycle messages reach it.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.state == StateWaiting || m.state == StateUploading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.diag != nil {
			_, cmd := m.diag.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case replyMsg:
		return m.handleReply(msg)

	case uploadedMsg:
		return m.handleUploaded(msg)

	case diagnostic.CompletedMsg:
		return m.handleDiagCompleted(msg)

	case diagnostic.CancelledMsg:
		return m.handleDiagCancelled(msg)

	case archivedMsg:
		if msg.err != nil {
			telemetry.L().Warn().Err(msg.err).Msg("result archive write failed")
		}
		return m, nil
	}

	if m.diag != nil {
		_, cmd := m.diag.Update(msg)
		m.layout()
		return m, cmd
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	m.input.Width = msg.Width - 6
	m.renderer.SetWidth(msg.Width)
	if m.diag != nil {
		m.diag.SetWidth(msg.Width)
	}
	m.layout()
	m.refreshTranscript()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		if m.diag != nil {
			m.diag.Teardown()
		}
		m.guard.release()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case StateCapturing:
		return m.handleCaptureKey(msg)
	case StateWaiting, StateUploading:
		// Only the transcript scrolls while a request is outstanding.
		return m.handleScrollKey(msg)
	}

	if key.Matches(msg, m.keyMap.Submit) {
		return m.handleSubmit()
	}
	if key.Matches(msg, m.keyMap.PageUp) || key.Matches(msg, m.keyMap.PageDown) {
		return m.handleScrollKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleCaptureKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Cancel) || key.Matches(msg, m.keyMap.Retry) {
		_, cmd := m.diag.Update(msg)
		return m, cmd
	}
	return m.handleScrollKey(msg)
}

func (m Model) handleScrollKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.PageUp) || key.Matches(msg, m.keyMap.PageDown) {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// SUBMIT AND COMMANDS
// =============================================================================

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}
	if strings.HasPrefix(raw, "/") {
		return m.handleSlashCommand(raw)
	}

	text := util.NormalizeText(raw)
	m.conversation.AppendUser(text)
	m.tracker.Touch()
	m.input.Reset()
	m.input.Blur()
	m.state = StateWaiting
	m.refreshTranscript()

	req := agent.ChatRequest{
		UserID:   m.userID,
		ThreadID: m.conversation.ThreadID,
		Message:  agent.Text(text),
	}
	return m, tea.Batch(m.spinner.Tick, m.sendChatCmd(req))
}

func (m Model) handleSlashCommand(raw string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(raw)
	m.input.Reset()

	switch fields[0] {
	case "/attach":
		if len(fields) < 2 {
			m.appendNotice("Usage: /attach <path-to-image>")
			return m, nil
		}
		return m.startUpload(strings.Join(fields[1:], " "))
	case "/new":
		m.conversation = model.NewConversation()
		m.vision = VisionTaskState{}
		m.appendNotice("Started a new conversation.")
		return m, nil
	case "/help":
		m.appendNotice(helpText)
		return m, nil
	case "/quit":
		m.quitting = true
		return m, tea.Quit
	default:
		m.appendNotice("Unknown command " + fields[0] + ". Try /help.")
		return m, nil
	}
}

const helpText = `Commands:
  /attach <path>  attach a photo and send it for review
  /new            start a fresh conversation
  /quit           exit

During a vision assessment: Esc cancels, r retries after an error.`

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	m.tracker.Touch()
	m.input.Blur()
	m.state = StateUploading
	m.refreshTranscript()
	return m, tea.Batch(m.spinner.Tick, m.uploadCmd(path))
}

// =============================================================================
// REPLY HANDLING
// =============================================================================

func (m Model) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	m.guard.release()

	if msg.err != nil {
		telemetry.L().Error().Err(msg.err).Msg("chat send failed")
		m.conversation.AppendAssistant(friendlyChatError(msg.err))
		return m.backToReady()
	}

	m.conversation.AppendAssistant(msg.reply.Text())

	if msg.reply.VideoStreamActive {
		return m.mountDiagnostic(msg.reply)
	}
	return m.backToReady()
}

func (m Model) handleUploaded(msg uploadedMsg) (tea.Model, tea.Cmd) {
	m.guard.release()

	if msg.err != nil {
		telemetry.L().Error().Err(msg.err).Str("file", msg.filename).Msg("upload failed")
		m.conversation.AppendAssistant(friendlyChatError(msg.err))
		return m.backToReady()
	}

	turn := model.NewUserMessage("")
	turn.ImageID = msg.imageID
	m.conversation.Append(turn)
	m.state = StateWaiting
	m.refreshTranscript()

	// Attachment-only turn: message stays null.
	req := agent.ChatRequest{
		UserID:   m.userID,
		ThreadID: m.conversation.ThreadID,
		ImageID:  msg.imageID,
	}
	return m, tea.Batch(m.spinner.Tick, m.sendChatCmd(req))
}

// =============================================================================
// DIAGNOSTIC MOUNT / UNMOUNT
// =============================================================================

// mountDiagnostic hangs the capture panel beneath the transcript. The room
// source is fixed here, once: a call_id on the chat reply names the room,
// otherwise the credential endpoint assigns one.
func (m Model) mountDiagnostic(reply *agent.ChatReply) (tea.Model, tea.Cmd) {
	source := rtc.SelfAllocatedRoom()
	if reply.CallID != "" {
		source = rtc.ProvidedRoom(reply.CallID)
	}

	m.diag = diagnostic.New(m.gateway, m.roomFactory(), source, reply.FunctionalTestType, m.theme, m.diagConfig)
	m.diag.SetWidth(m.width)
	m.vision = VisionTaskState{
		Active:    true,
		Type:      reply.FunctionalTestType,
		SessionID: reply.CallID,
	}
	m.state = StateCapturing
	m.layout()
	m.refreshTranscript()

	telemetry.L().Info().
		Str("test_type", reply.FunctionalTestType).
		Str("call_id", reply.CallID).
		Msg("diagnostic panel mounted")

	return m, m.diag.Init()
}

func (m Model) handleDiagCompleted(msg diagnostic.CompletedMsg) (tea.Model, tea.Cmd) {
	m.unmountDiagnostic()

	turn := model.NewUserMessage("Completed the " + testLabel(msg.TestType) + " capture.")
	turn.TestType = msg.TestType
	m.conversation.Append(turn)
	m.state = StateWaiting
	m.layout()
	m.refreshTranscript()

	req := agent.ChatRequest{
		UserID:                m.userID,
		ThreadID:              m.conversation.ThreadID,
		FunctionalTestResults: msg.Data,
		FunctionalTestType:    msg.TestType,
	}

	cmds := []tea.Cmd{m.spinner.Tick, m.sendChatCmd(req)}
	if m.archive != nil {
		cmds = append(cmds, m.archiveCmd(msg))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleDiagCancelled(diagnostic.CancelledMsg) (tea.Model, tea.Cmd) {
	m.unmountDiagnostic()
	m.conversation.AppendAssistant("Diagnostic scan cancelled. Let me know when you're ready to try again.")
	m.layout()
	return m.backToReady()
}

func (m *Model) unmountDiagnostic() {
	if m.diag != nil {
		m.diag.Teardown()
		m.diag = nil
	}
	m.vision = VisionTaskState{}
}

// =============================================================================
// HELPERS
// =============================================================================

func (m Model) backToReady() (tea.Model, tea.Cmd) {
	m.state = StateReady
	m.refreshTranscript()
	return m, m.input.Focus()
}

func (m *Model) appendNotice(text string) {
	m.conversation.AppendSystem(text)
	m.refreshTranscript()
}

// refreshTranscript re-renders the conversation into the viewport and
// follows the newest turn.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderer.RenderHistory(m.conversation.History()))
	m.viewport.GotoBottom()
}

// layout sizes the viewport around the fixed chrome and, when mounted, the
// diagnostic panel.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	chrome := headerHeight + inputHeight + statusHeight
	if m.diag != nil {
		chrome += lipglossHeight(m.diag.View())
	}
	h := m.height - chrome
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

// testLabel turns a wire test type into words for the transcript.
func testLabel(testType string) string {
	switch testType {
	case "plr_test":
		return "pupil response"
	case "":
		return "vision"
	default:
		return strings.ReplaceAll(testType, "_", " ")
	}
}

// friendlyChatError picks the assistant-voice line shown for a failed chat
// or upload request.
func friendlyChatError(err error) string {
	switch {
	case errors.Is(err, agent.ErrNotAnImage):
		return "That file doesn't look like an image. Please attach a photo (png or jpeg) and try again."
	case agent.IsNetworkFailure(err):
		return "I couldn't reach the service. Please check your connection and try again."
	case agent.IsServerError(err):
		return "Something went wrong on our side while handling that. Please try again in a moment."
	default:
		return "Something unexpected went wrong. Please try again."
	}
}
