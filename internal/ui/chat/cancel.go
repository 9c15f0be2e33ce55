// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the application shell.
//
// This file holds the cancel handle for the outstanding gateway request.
// Bubble Tea returns value copies of the model from Update, so the handle
// must live behind a pointer for every copy to share it.
package chat

import (
	"context"
	"sync"
)

// requestGuard tracks the cancel function of the single in-flight gateway
// request (chat send or upload). The shell disables input while one is
// outstanding, so there is never more than one.
type requestGuard struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func newRequestGuard() *requestGuard {
	return &requestGuard{}
}

// arm stores the cancel function for a freshly launched request, cancelling
// any leftover one first.
func (g *requestGuard) arm(fn context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	g.cancel = fn
}

// release cancels the current request's context, if any, and clears the
// handle. Always called when a reply lands so contexts never leak.
func (g *requestGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
