// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the application shell: it owns the conversation, the
// input loop, and the vision-task state, and it mounts the diagnostic
// capture panel exactly when the backend flags a turn with
// video_stream_active.
//
// The shell never talks to the room service itself; everything real-time
// is delegated to the mounted diagnostic controller, and its results come
// back as ordinary Bubble Tea messages.
package chat
