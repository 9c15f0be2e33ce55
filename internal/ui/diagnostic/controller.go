// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnostic implements the video-capture session controller.
//
// This file holds the controller model itself: construction, the phase
// machine, and the Update loop that drives setup, polling, and teardown.
package diagnostic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/rtc"
	"github.com/visia-health/visia-tui/internal/telemetry"
	"github.com/visia-health/visia-tui/internal/ui/styles"
)

// =============================================================================
// GATEWAY
// =============================================================================

// Gateway is the slice of the backend client the controller needs: one
// credential fetch and one result poll. *agent.Client satisfies it.
type Gateway interface {
	FetchVideoToken(ctx context.Context, userID string) (*agent.VideoToken, error)
	FetchDiagnosticResult(ctx context.Context, callID string) (*agent.DiagnosticResult, error)
}

// =============================================================================
// PHASES
// =============================================================================

// Phase is the controller's position in the session lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseFetchingCredential
	PhaseConnecting
	PhaseActive
	PhaseTransmitting
	PhaseComplete
	PhaseCancelled
	PhaseError
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseFetchingCredential:
		return "fetching_credential"
	case PhaseConnecting:
		return "connecting"
	case PhaseActive:
		return "active"
	case PhaseTransmitting:
		return "transmitting"
	case PhaseComplete:
		return "complete"
	case PhaseCancelled:
		return "cancelled"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether the phase accepts no further lifecycle
// transitions except a fresh Init.
func (p Phase) terminal() bool {
	return p == PhaseComplete || p == PhaseCancelled || p == PhaseError
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config tunes the controller's timing. Zero values are replaced with the
// defaults below.
type Config struct {
	// PollInterval is the pause between result polls while Active.
	PollInterval time.Duration
	// SetupTimeout bounds each setup step (credential fetch, room join
	// plus track enablement).
	SetupTimeout time.Duration
	// TransmitDelay is the pause after a complete result before the panel
	// reports back to the parent, giving the closing status a beat on
	// screen.
	TransmitDelay time.Duration
	// EnableMicrophone also opens the local microphone track after the
	// camera. Most assessments are video-only.
	EnableMicrophone bool
}

// Timing defaults.
const (
	DefaultPollInterval  = 2 * time.Second
	DefaultSetupTimeout  = 30 * time.Second
	DefaultTransmitDelay = 1200 * time.Millisecond
)

// DefaultConfig returns the standard controller timing.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  DefaultPollInterval,
		SetupTimeout:  DefaultSetupTimeout,
		TransmitDelay: DefaultTransmitDelay,
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.SetupTimeout <= 0 {
		out.SetupTimeout = DefaultSetupTimeout
	}
	if out.TransmitDelay <= 0 {
		out.TransmitDelay = DefaultTransmitDelay
	}
	return &out
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs one diagnostic capture session. Construct a new one per
// session; a Controller whose session has ended is not reused except
// through the in-place retry path.
type Controller struct {
	gateway Gateway
	room    rtc.RoomClient
	source  rtc.RoomSource
	config  *Config

	// patientID identifies the patient to the credential endpoint. Fixed
	// at construction so retries and re-inits present the same identity.
	patientID string

	testType string
	phase    Phase
	callID   string

	// cred is held between the credential reply and the join so the retry
	// path starts over from a clean fetch rather than reusing a possibly
	// expired token.
	cred rtc.Credential

	latch *setupLatch
	life  *lifecycle

	// ctx is the current generation's context; retired on teardown.
	ctx context.Context

	// pendingData is the completed result payload, held across the
	// transmit pause until it is handed to the parent.
	pendingData json.RawMessage

	errTitle  string
	errDetail string

	spinner spinner.Model
	theme   *styles.Theme
	width   int
}

// New constructs a controller for one capture session. testType names the
// assessment being run (for a pupil test, "pupil_latency"); it is echoed in
// every parent-facing message so the chat model can label the results turn.
func New(gateway Gateway, room rtc.RoomClient, source rtc.RoomSource, testType string, theme *styles.Theme, config *Config) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return &Controller{
		gateway:   gateway,
		room:      room,
		source:    source,
		config:    config.withDefaults(),
		patientID: uuid.NewString(),
		testType:  testType,
		phase:     PhaseUninitialized,
		latch:     newSetupLatch(),
		life:      newLifecycle(),
		spinner:   sp,
		theme:     theme,
	}
}

// PatientID returns the stable patient identifier presented to the
// credential endpoint.
func (c *Controller) PatientID() string {
	return c.patientID
}

// Phase returns the controller's current lifecycle phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// TestType returns the assessment name this session was started for.
func (c *Controller) TestType() string {
	return c.testType
}

// SetWidth adjusts the rendered panel width.
func (c *Controller) SetWidth(w int) {
	c.width = w
}

// =============================================================================
// INIT
// =============================================================================

// Init starts the setup sequence. The runtime may call it more than once;
// the latch makes every call after the first a no-op, so exactly one
// credential request leaves per session.
func (c *Controller) Init() tea.Cmd {
	if !c.latch.Fire() {
		return nil
	}

	gen, ctx := c.life.begin()
	c.ctx = ctx
	c.phase = PhaseFetchingCredential
	c.errTitle, c.errDetail = "", ""

	telemetry.L().Info().
		Str("test_type", c.testType).
		Uint64("generation", gen).
		Msg("diagnostic session setup started")

	return tea.Batch(c.spinner.Tick, c.fetchCredentialCmd(ctx, gen))
}

// =============================================================================
// UPDATE
// =============================================================================

// Update advances the phase machine. All async replies carry a generation
// stamp and are dropped when they belong to a session that has since been
// torn down.
func (c *Controller) Update(msg tea.Msg) (*Controller, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if c.phase.terminal() {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd

	case tea.KeyMsg:
		return c.handleKey(msg)

	case credentialMsg:
		if !c.life.live(msg.gen) {
			return c, nil
		}
		return c.handleCredential(msg)

	case roomReadyMsg:
		if !c.life.live(msg.gen) {
			return c, nil
		}
		return c.handleRoomReady(msg)

	case pollTickMsg:
		if !c.life.live(msg.gen) || c.phase != PhaseActive {
			return c, nil
		}
		return c, c.pollCmd(msg.gen)

	case resultMsg:
		if !c.life.live(msg.gen) || c.phase != PhaseActive {
			return c, nil
		}
		return c.handleResult(msg)

	case transmitDoneMsg:
		if !c.life.live(msg.gen) || c.phase != PhaseTransmitting {
			return c, nil
		}
		return c.handleTransmitDone(msg)
	}

	return c, nil
}

func (c *Controller) handleKey(msg tea.KeyMsg) (*Controller, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if c.phase == PhaseComplete || c.phase == PhaseCancelled {
			return c, nil
		}
		return c.cancel()
	case "r":
		if c.phase != PhaseError {
			return c, nil
		}
		return c.retry()
	}
	return c, nil
}

func (c *Controller) handleCredential(msg credentialMsg) (*Controller, tea.Cmd) {
	if msg.err != nil {
		return c.fail("Could not start the video session", msg.err)
	}

	roomID, err := c.resolveRoomID(msg.callID)
	if err != nil {
		return c.fail("Could not start the video session", err)
	}

	c.callID = roomID
	c.cred = msg.cred
	c.phase = PhaseConnecting

	telemetry.L().Info().
		Str("call_id", roomID).
		Msg("credential received, joining room")

	return c, c.connectCmd(msg.gen, msg.cred, roomID)
}

func (c *Controller) handleRoomReady(msg roomReadyMsg) (*Controller, tea.Cmd) {
	if msg.err != nil {
		return c.fail("Camera could not be enabled", msg.err)
	}

	c.phase = PhaseActive
	telemetry.L().Info().
		Str("call_id", c.callID).
		Msg("capture active, polling for results")

	// First poll goes out after one interval, not immediately: the
	// analysis never finishes before the capture has run at all.
	return c, c.tickCmd(msg.gen)
}

func (c *Controller) handleResult(msg resultMsg) (*Controller, tea.Cmd) {
	if msg.err != nil {
		// A single failed poll is not fatal while the session is healthy;
		// keep the cadence and try again. Persistent failure surfaces when
		// the user gives up or the backend returns a setup error.
		if agent.IsSetupFailure(msg.err) {
			c.releaseRoom()
			return c.fail("Video session was interrupted", msg.err)
		}
		telemetry.L().Warn().Err(msg.err).Msg("result poll failed, retrying")
		return c, c.tickCmd(msg.gen)
	}

	if !msg.result.Complete() {
		return c, c.tickCmd(msg.gen)
	}

	// Results are in: release the camera before anything else so the
	// hardware indicator goes dark the moment capture is no longer needed.
	c.releaseRoom()
	c.phase = PhaseTransmitting
	c.pendingData = msg.result.Data

	telemetry.L().Info().
		Str("call_id", c.callID).
		Int("payload_bytes", len(c.pendingData)).
		Msg("diagnostic analysis complete")

	return c, c.transmitDelayCmd(msg.gen)
}

func (c *Controller) handleTransmitDone(msg transmitDoneMsg) (*Controller, tea.Cmd) {
	c.phase = PhaseComplete
	c.life.retire()

	testType, callID, data := c.testType, c.callID, c.pendingData
	return c, func() tea.Msg {
		return CompletedMsg{TestType: testType, CallID: callID, Data: data}
	}
}

// =============================================================================
// CANCEL / RETRY / TEARDOWN
// =============================================================================

// Cancel abandons the session from outside the key loop (the parent's
// quit path uses it). Equivalent to the user pressing esc.
func (c *Controller) Cancel() (*Controller, tea.Cmd) {
	return c.cancel()
}

func (c *Controller) cancel() (*Controller, tea.Cmd) {
	c.Teardown()
	c.phase = PhaseCancelled

	telemetry.L().Info().
		Str("test_type", c.testType).
		Msg("diagnostic session cancelled")

	testType := c.testType
	return c, func() tea.Msg {
		return CancelledMsg{TestType: testType}
	}
}

func (c *Controller) retry() (*Controller, tea.Cmd) {
	// Same controller, same patient id, fresh generation and a clean
	// credential fetch.
	c.latch.Reset()
	c.phase = PhaseUninitialized
	c.cred = rtc.Credential{}
	c.callID = ""
	return c, c.Init()
}

// Teardown releases the session's resources: the generation context is
// retired (aborting in-flight requests and invalidating their replies) and
// the room is left, once. Safe to call in any phase and more than once;
// the parent calls it whenever the panel is unmounted.
func (c *Controller) Teardown() {
	c.life.retire()
	c.releaseRoom()
	c.latch.Reset()
}

// releaseRoom leaves the room and drops capture hardware, at most once per
// generation.
func (c *Controller) releaseRoom() {
	if !c.life.releaseOnce() {
		return
	}
	if err := c.room.Leave(); err != nil {
		telemetry.L().Warn().Err(err).Msg("room leave failed")
	}
}

// =============================================================================
// ROOM RESOLUTION
// =============================================================================

// resolveRoomID applies the room-source contract and folds its failures
// into the setup error taxonomy.
func (c *Controller) resolveRoomID(credCallID string) (string, error) {
	id, err := c.source.Resolve(credCallID)
	if err != nil {
		return "", &agent.ClientError{Kind: agent.ErrKindSetup, Message: err.Error(), Cause: err}
	}
	return id, nil
}

// =============================================================================
// FAILURE
// =============================================================================

// fail moves to the Error phase. The generation is retired so any
// stragglers are dropped, and the room is released in case the failure
// arrived after a successful join.
func (c *Controller) fail(title string, err error) (*Controller, tea.Cmd) {
	c.releaseRoom()
	c.life.retire()
	c.phase = PhaseError
	c.errTitle = title
	c.errDetail = errDetail(err)

	telemetry.L().Error().
		Err(err).
		Str("test_type", c.testType).
		Msg("diagnostic session failed")

	return c, nil
}

// errDetail picks the user-facing line for an error.
func errDetail(err error) string {
	if err == nil {
		return ""
	}
	var clientErr *agent.ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Message
	}
	return err.Error()
}
