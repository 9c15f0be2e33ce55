// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the visia TUI.
//
// Components here are stateless renderers: given data and a theme they
// produce strings for the viewport. The MessageRenderer draws chat turns
// (assistant left with icon, user right), ErrorBox draws the inline
// diagnostic error panel.
package components
