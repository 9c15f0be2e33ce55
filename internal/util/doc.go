// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides shared helpers for the visia TUI.
//
// The helpers here are small, dependency-light functions used across
// packages: rune- and width-aware truncation for terminal layout and
// Unicode normalization for outbound message text.
package util
