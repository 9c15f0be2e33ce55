// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and turns.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds an ordered, append-only sequence of chat turns for one
// page session. Append order is the only meaningful order; turns are never
// reordered, edited, or removed, and nothing here is persisted — state is
// intentionally lost when the process exits.
type Conversation struct {
	// ThreadID groups every turn of this session for the backend agent's
	// context. Generated once per process and never regenerated.
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []*Message `json:"messages"`
}

// NewConversation creates a new conversation with a generated thread ID.
func NewConversation() *Conversation {
	return &Conversation{
		ThreadID:  uuid.NewString(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a turn to the end of the conversation. There is no removal or
// edit counterpart.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// AppendUser creates and appends a user turn.
func (c *Conversation) AppendUser(content string) *Message {
	msg := NewUserMessage(content)
	c.Append(msg)
	return msg
}

// AppendAssistant creates and appends an assistant turn.
func (c *Conversation) AppendAssistant(content string) *Message {
	msg := NewAssistantMessage(content)
	c.Append(msg)
	return msg
}

// AppendSystem creates and appends a synthetic notice turn.
func (c *Conversation) AppendSystem(content string) *Message {
	msg := NewSystemMessage(content)
	c.Append(msg)
	return msg
}

// Last returns the most recent turn, or nil if empty.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastOfRole returns the most recent turn with the given role, or nil.
func (c *Conversation) LastOfRole(role Role) *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return c.Messages[i]
		}
	}
	return nil
}

// History returns the turns in append order for display.
func (c *Conversation) History() []*Message {
	return c.Messages
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no turns.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Preview returns a short preview of the conversation for the status bar.
func (c *Conversation) Preview() string {
	last := c.LastOfRole(RoleUser)
	if last == nil {
		if len(c.Messages) == 0 {
			return "Empty conversation"
		}
		last = c.Messages[0]
	}
	return last.Preview(100)
}
