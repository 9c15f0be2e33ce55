// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks activity for one client session. The conversation
// thread id lives on the conversation itself; this package only answers
// "how long has this session run" and "is the user idle" for the status
// bar.
package session

import (
	"fmt"
	"sync"
	"time"
)

// DefaultIdleWarning is how long without input before the status bar nudges
// the user that the assistant is still waiting.
const DefaultIdleWarning = 10 * time.Minute

// Tracker records session start and last-activity times. Safe for
// concurrent use.
type Tracker struct {
	mu           sync.Mutex
	startedAt    time.Time
	lastActivity time.Time
	now          func() time.Time
}

// NewTracker starts tracking from now.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.startedAt = t.now()
	t.lastActivity = t.startedAt
	return t
}

// Touch records user activity.
func (t *Tracker) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = t.now()
}

// Elapsed returns the session duration so far.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.startedAt)
}

// Idle returns the time since the last recorded activity.
func (t *Tracker) Idle() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.lastActivity)
}

// IdleWarning reports whether the idle time has crossed the threshold. A
// zero threshold uses DefaultIdleWarning.
func (t *Tracker) IdleWarning(threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultIdleWarning
	}
	return t.Idle() >= threshold
}

// FormatElapsed renders a duration as h:mm:ss or m:ss for the status bar.
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
