// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the HTTP client for the vision-assessment backend.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/visia-health/visia-tui/internal/telemetry"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the agent backend client.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Status  int // HTTP status for server errors, 0 otherwise
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorKind categorizes client errors for handling. The taxonomy mirrors how
// failures surface to the user: network and server failures become synthetic
// assistant turns, permission and setup failures become the inline error
// panel of the diagnostic view.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindNetwork           // no response received
	ErrKindServer            // non-success status from the backend
	ErrKindPermission        // hardware or access refused
	ErrKindSetup             // credential/join/enable sequence failed
	ErrKindInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Kind: ErrKindNetwork, Message: "backend is unreachable"}
	ErrTimeout     = &ClientError{Kind: ErrKindNetwork, Message: "request timed out"}
	ErrNotAnImage  = &ClientError{Kind: ErrKindServer, Message: "attached file is not an image"}
)

// IsNetworkFailure checks if an error is a network-level failure.
func IsNetworkFailure(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Kind == ErrKindNetwork
	}
	return false
}

// IsServerError checks if an error is a non-success backend response.
func IsServerError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Kind == ErrKindServer
	}
	return false
}

// IsSetupFailure checks if an error belongs to the diagnostic setup path.
func IsSetupFailure(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Kind == ErrKindSetup || clientErr.Kind == ErrKindPermission
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the agent backend base URL.
	BaseURL string

	// Timeout for chat and token requests (default: 30s).
	Timeout time.Duration

	// UploadTimeout for multipart image uploads (default: 60s).
	UploadTimeout time.Duration

	// PollBurst and PollPerSecond bound the diagnostic-results polling rate
	// so a misconfigured interval can never hammer the endpoint.
	PollPerSecond float64
	PollBurst     int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       "http://127.0.0.1:8000",
		Timeout:       30 * time.Second,
		UploadTimeout: 60 * time.Second,
		PollPerSecond: 1,
		PollBurst:     2,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the vision-assessment backend. Every
// call is a stateless request/response; the Client is safe for concurrent
// use.
//
// Example:
//
//	client := agent.NewClient(cfg)
//	reply, err := client.SendChat(ctx, agent.ChatRequest{
//	    UserID:   userID,
//	    ThreadID: threadID,
//	    Message:  agent.Text("I see flashes of light"),
//	})
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	uploader   *http.Client
	pollLimit  *rate.Limiter
}

// NewClient creates a new backend client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UploadTimeout == 0 {
		config.UploadTimeout = 60 * time.Second
	}
	if config.PollPerSecond == 0 {
		config.PollPerSecond = 1
	}
	if config.PollBurst == 0 {
		config.PollBurst = 2
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		uploader:   &http.Client{Timeout: config.UploadTimeout},
		pollLimit:  rate.NewLimiter(rate.Limit(config.PollPerSecond), config.PollBurst),
	}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// =============================================================================
// CHAT
// =============================================================================

// SendChat posts a chat turn and returns the agent's reply together with the
// video-stream signal the shell uses to mount the diagnostic panel.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindInvalidResponse, Message: "failed to marshal chat request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Kind: ErrKindNetwork, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serverError("chat request failed", resp)
	}

	var reply ChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &ClientError{Kind: ErrKindInvalidResponse, Message: "failed to decode chat reply", Cause: err}
	}

	telemetry.L().Debug().
		Str("thread_id", req.ThreadID).
		Bool("video_stream_active", reply.VideoStreamActive).
		Str("functional_test_type", reply.FunctionalTestType).
		Msg("chat reply received")

	return &reply, nil
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadImage uploads an image as the multipart field "file" and returns the
// backend's image identifier. The content is sniffed first: a non-image file
// is rejected client-side so the failure surfaces as an upload error, not a
// chat error.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", &ClientError{Kind: ErrKindNetwork, Message: "failed to read file", Cause: err}
	}
	head = head[:n]

	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", ErrNotAnImage
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", &ClientError{Kind: ErrKindUnknown, Message: "failed to build upload form", Cause: err}
	}
	if _, err := part.Write(head); err != nil {
		return "", &ClientError{Kind: ErrKindUnknown, Message: "failed to buffer upload", Cause: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", &ClientError{Kind: ErrKindUnknown, Message: "failed to buffer upload", Cause: err}
	}
	if err := mw.Close(); err != nil {
		return "", &ClientError{Kind: ErrKindUnknown, Message: "failed to finalize upload form", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/upload", &buf)
	if err != nil {
		return "", &ClientError{Kind: ErrKindNetwork, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploader.Do(httpReq)
	if err != nil {
		return "", wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", serverError("upload failed", resp)
	}

	var result UploadReply
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ClientError{Kind: ErrKindInvalidResponse, Message: "failed to decode upload reply", Cause: err}
	}
	if result.ImageID == "" {
		return "", &ClientError{Kind: ErrKindInvalidResponse, Message: "upload reply carried no image_id"}
	}

	return result.ImageID, nil
}

// =============================================================================
// DIAGNOSTIC RESULTS
// =============================================================================

// FetchDiagnosticResult polls the analysis endpoint for the given session.
// The call is paced by the client's rate limiter; results are pulled, never
// pushed.
func (c *Client) FetchDiagnosticResult(ctx context.Context, callID string) (*DiagnosticResult, error) {
	if callID == "" {
		return nil, &ClientError{Kind: ErrKindSetup, Message: "no session id to poll"}
	}
	if err := c.pollLimit.Wait(ctx); err != nil {
		return nil, wrapTransportError(err)
	}

	endpoint := c.config.BaseURL + "/diagnostic-results/" + url.PathEscape(callID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindNetwork, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serverError("diagnostic result fetch failed", resp)
	}

	var result DiagnosticResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Kind: ErrKindInvalidResponse, Message: "failed to decode diagnostic result", Cause: err}
	}

	return &result, nil
}

// =============================================================================
// VIDEO TOKEN
// =============================================================================

// FetchVideoToken requests a short-lived capture credential for the user.
// The reply's call_id is present only when the backend expects the client to
// allocate the room itself; when the room was created by a prior chat turn
// the field is absent.
func (c *Client) FetchVideoToken(ctx context.Context, userID string) (*VideoToken, error) {
	endpoint := c.config.BaseURL + "/generate-video-token?user_id=" + url.QueryEscape(userID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindSetup, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		transport := wrapTransportError(err)
		// Credential failures belong to the setup path of the error taxonomy.
		return nil, &ClientError{Kind: ErrKindSetup, Message: "credential request failed", Cause: transport}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Kind:    ErrKindSetup,
			Message: "credential request failed",
			Status:  resp.StatusCode,
			Cause:   serverError("credential fetch", resp),
		}
	}

	var token VideoToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &ClientError{Kind: ErrKindSetup, Message: "failed to decode credential", Cause: err}
	}
	if token.Token == "" {
		return nil, &ClientError{Kind: ErrKindSetup, Message: "credential reply carried no token"}
	}

	return &token, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// wrapTransportError converts a transport-level error into a ClientError.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &ClientError{Kind: ErrKindNetwork, Message: "request cancelled", Cause: err}
	}
	return &ClientError{Kind: ErrKindNetwork, Message: "backend is unreachable", Cause: err}
}

// serverError builds a ClientError from a non-success response, pulling the
// optional detail payload the backend attaches to failures.
func serverError(prefix string, resp *http.Response) error {
	msg := fmt.Sprintf("%s: %s", prefix, resp.Status)

	var detail struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&detail); err == nil {
		if detail.Detail != "" {
			msg = prefix + ": " + detail.Detail
		} else if detail.Error != "" {
			msg = prefix + ": " + detail.Error
		}
	}

	return &ClientError{Kind: ErrKindServer, Message: msg, Status: resp.StatusCode}
}
