// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the HTTP client for the vision-assessment backend.
//
// Four stateless operations cover everything the client needs from the
// backend: SendChat (POST /chat), UploadImage (POST /upload, multipart),
// FetchDiagnosticResult (GET /diagnostic-results/{call_id}), and
// FetchVideoToken (GET /generate-video-token). Errors are categorized by
// ErrorKind so callers can route them to the right surface: synthetic
// assistant turns for chat and upload failures, the inline diagnostic error
// panel for setup failures.
package agent
