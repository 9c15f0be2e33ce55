// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	msg := NewUserMessage("I see flashes of light")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "I see flashes of light" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.ID == "" {
		t.Error("ID should be generated")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestMessage_PreservesWhitespace(t *testing.T) {
	content := "line one\n\n  indented line\ttabbed"
	msg := NewAssistantMessage(content)
	if msg.Content != content {
		t.Errorf("Content altered: %q", msg.Content)
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("this is a long message that should be truncated")
	got := msg.Preview(20)
	if len([]rune(got)) > 20 {
		t.Errorf("Preview too long: %q", got)
	}
}

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Visia"},
		{RoleSystem, "Notice"},
		{Role("other"), "other"},
	}
	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_AppendOrderPreserved(t *testing.T) {
	conv := NewConversation()

	// Append a mixed sequence and verify output order equals call order.
	var wantContents []string
	for i := 0; i < 25; i++ {
		content := fmt.Sprintf("turn-%d", i)
		wantContents = append(wantContents, content)
		if i%2 == 0 {
			conv.AppendUser(content)
		} else {
			conv.AppendAssistant(content)
		}
	}

	history := conv.History()
	if len(history) != len(wantContents) {
		t.Fatalf("History len = %d, want %d", len(history), len(wantContents))
	}
	for i, msg := range history {
		if msg.Content != wantContents[i] {
			t.Errorf("History[%d] = %q, want %q", i, msg.Content, wantContents[i])
		}
	}
}

func TestConversation_ThreadIDStable(t *testing.T) {
	conv := NewConversation()
	if conv.ThreadID == "" {
		t.Fatal("ThreadID should be generated")
	}

	id := conv.ThreadID
	conv.AppendUser("hello")
	conv.AppendAssistant("hi")
	if conv.ThreadID != id {
		t.Error("ThreadID must not change as turns are appended")
	}
}

func TestConversation_Last(t *testing.T) {
	conv := NewConversation()
	if conv.Last() != nil {
		t.Error("Last on empty conversation should be nil")
	}

	conv.AppendUser("question")
	conv.AppendAssistant("answer")

	if got := conv.Last(); got.Content != "answer" {
		t.Errorf("Last = %q, want %q", got.Content, "answer")
	}
	if got := conv.LastOfRole(RoleUser); got.Content != "question" {
		t.Errorf("LastOfRole(user) = %q, want %q", got.Content, "question")
	}
	if got := conv.LastOfRole(RoleSystem); got != nil {
		t.Errorf("LastOfRole(system) = %v, want nil", got)
	}
}

func TestConversation_DistinctThreadIDs(t *testing.T) {
	a := NewConversation()
	b := NewConversation()
	if a.ThreadID == b.ThreadID {
		t.Error("distinct conversations must not share a thread ID")
	}
}
