// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnostic implements the video-capture session controller.
//
// This file implements the thread-safe session bookkeeping shared between
// the Update loop and command goroutines. Both types must be held as
// pointers in the Controller so Bubble Tea's value copies of the model all
// observe the same state.
package diagnostic

import (
	"context"
	"sync"
)

// =============================================================================
// SETUP LATCH
// =============================================================================

// setupLatch collapses repeated Init calls into a single setup sequence.
// The runtime may invoke Init more than once for the same mounted
// component; only the first call through the latch starts the credential
// fetch.
type setupLatch struct {
	mu    sync.Mutex
	fired bool
}

func newSetupLatch() *setupLatch {
	return &setupLatch{}
}

// Fire returns true exactly once per armed period. Subsequent calls return
// false until Reset.
func (l *setupLatch) Fire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fired {
		return false
	}
	l.fired = true
	return true
}

// Reset re-arms the latch so a retry or a fresh mount can start setup
// again.
func (l *setupLatch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fired = false
}

// =============================================================================
// GENERATION LIFECYCLE
// =============================================================================

// lifecycle tracks the current session generation. Every async command
// stamps its reply with the generation it was launched under; replies from
// an older generation are dropped by the Update loop. retire cancels the
// generation's context so in-flight requests abort promptly.
type lifecycle struct {
	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	released bool
}

func newLifecycle() *lifecycle {
	return &lifecycle{}
}

// begin retires any previous generation and opens a new one, returning its
// number and a context that lives until retire. Step-level deadlines are
// layered on top by the commands themselves.
func (l *lifecycle) begin() (uint64, context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	l.released = false
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	return l.gen, ctx
}

// current returns the active generation number.
func (l *lifecycle) current() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// live reports whether gen is still the active generation.
func (l *lifecycle) live(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen == l.gen
}

// retire cancels the active generation's context and advances the
// generation number, so every reply stamped before the retire fails the
// live check. Safe to call more than once.
func (l *lifecycle) retire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

// releaseOnce returns true the first time it is called within a
// generation. The room/camera teardown path gates on it so capture
// hardware is released at most once no matter how many paths reach
// teardown.
func (l *lifecycle) releaseOnce() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false
	}
	l.released = true
	return true
}
