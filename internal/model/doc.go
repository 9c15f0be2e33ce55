// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and turns.
//
// A Conversation is an in-memory, append-only sequence of Messages keyed by
// a thread ID generated once per process. Messages are immutable after
// appending and are never persisted; losing the conversation on exit is a
// deliberate design choice, not a defect.
package model
