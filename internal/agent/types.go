// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the HTTP client for the vision-assessment backend.
package agent

import "encoding/json"

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatRequest is the JSON body of POST /chat.
//
// Message is a pointer so that a turn carrying only an image reference or
// diagnostic results serializes message as null, which is what the backend
// expects for attachment-only turns.
type ChatRequest struct {
	UserID                string          `json:"user_id"`
	ThreadID              string          `json:"thread_id"`
	Message               *string         `json:"message"`
	ImageID               string          `json:"image_id,omitempty"`
	FunctionalTestResults json.RawMessage `json:"functional_test_results,omitempty"`
	FunctionalTestType    string          `json:"functional_test_type,omitempty"`
}

// Text wraps a string for the ChatRequest.Message field.
func Text(s string) *string {
	return &s
}

// ChatReply is the JSON body returned by POST /chat. The backend has shipped
// both "response" and "message" for the reply text; Text() folds them.
type ChatReply struct {
	Response           string `json:"response"`
	Message            string `json:"message"`
	VideoStreamActive  bool   `json:"video_stream_active"`
	FunctionalTestType string `json:"functional_test_type"`
	CallID             string `json:"call_id"`
}

// Text returns the reply text regardless of which field the backend used.
func (r *ChatReply) Text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Message
}

// =============================================================================
// UPLOAD TYPES
// =============================================================================

// UploadReply is the JSON body returned by POST /upload.
type UploadReply struct {
	ImageID string `json:"image_id"`
}

// =============================================================================
// DIAGNOSTIC TYPES
// =============================================================================

// Diagnostic result statuses.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
)

// DiagnosticResult is the JSON body returned by GET /diagnostic-results/{id}.
// Data is opaque structured output from the backend analysis process (for a
// pupil test, latency measurements); the client only displays and forwards
// it.
type DiagnosticResult struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Complete reports whether the analysis has finished.
func (r *DiagnosticResult) Complete() bool {
	return r.Status == StatusComplete
}

// =============================================================================
// CREDENTIAL TYPES
// =============================================================================

// VideoToken is the JSON body returned by GET /generate-video-token. CallID
// is present only when the client is expected to allocate the room itself.
type VideoToken struct {
	Token  string `json:"token"`
	CallID string `json:"call_id"`
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}
