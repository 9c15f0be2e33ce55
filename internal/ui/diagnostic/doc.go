// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnostic implements the video-capture session controller.
//
// A diagnostic session is started by the backend flagging a chat turn with
// video_stream_active. The controller then walks a fixed lifecycle:
//
//	Uninitialized -> FetchingCredential -> Connecting -> Active
//	                                                      |-> Transmitting -> Complete
//	                                                      |-> Cancelled
//	                                                      '-> Error (retryable)
//
// While Active it polls the backend for analysis results on a fixed
// interval, one request in flight at a time. Every terminal transition
// releases the camera and room membership exactly once, and any async reply
// belonging to a torn-down generation is discarded.
package diagnostic
