// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rtc wraps the hosted real-time video service the capture flow
// joins.
package rtc

import (
	"context"
	"errors"
)

// =============================================================================
// CREDENTIAL
// =============================================================================

// Credential grants entry to a specific room: a short-lived access token
// plus the routing key of the hosted service.
type Credential struct {
	Token  string
	APIKey string
	UserID string
}

// =============================================================================
// ROOM CLIENT INTERFACE
// =============================================================================

// RoomClient is the capture-side view of the hosted video service. The
// service itself is externally owned; the client only joins a room, enables
// local capture tracks, and leaves.
//
// Leave must be idempotent and must release any enabled capture hardware
// along with the room membership. Implementations are not required to be
// safe for concurrent use; the diagnostic controller serializes all calls.
type RoomClient interface {
	// Join connects to the room identified by roomID using the credential.
	Join(ctx context.Context, cred Credential, roomID string) error

	// EnableCamera starts the local camera track. Only valid after Join.
	EnableCamera(ctx context.Context) error

	// EnableMicrophone starts the local microphone track. Only valid after
	// Join.
	EnableMicrophone(ctx context.Context) error

	// Leave releases room membership and any enabled tracks. Safe to call
	// in any state and more than once.
	Leave() error
}

// =============================================================================
// ROOM SOURCE
// =============================================================================

// RoomSource says where the room identifier comes from: supplied by the
// backend as part of a prior chat turn, or allocated for this client by the
// credential endpoint. It is resolved once at controller construction
// instead of branching on optional-field presence through the lifecycle.
type RoomSource struct {
	provided bool
	id       string
}

// ProvidedRoom returns a RoomSource for a backend-supplied room id.
func ProvidedRoom(id string) RoomSource {
	return RoomSource{provided: true, id: id}
}

// SelfAllocatedRoom returns a RoomSource for a room allocated during
// credential fetch: the credential reply's call_id names the room and must
// be present.
func SelfAllocatedRoom() RoomSource {
	return RoomSource{}
}

// Provided reports whether the room id was supplied by the backend, and the
// id itself.
func (s RoomSource) Provided() (string, bool) {
	if s.provided {
		return s.id, true
	}
	return "", false
}

// Room-resolution contract errors.
var (
	// ErrRoomMismatch indicates the credential endpoint named a different
	// room than the chat turn that started the session.
	ErrRoomMismatch = errors.New("credential names a different room than the session")
	// ErrNoRoomAssigned indicates a self-allocating session whose
	// credential reply carried no room id.
	ErrNoRoomAssigned = errors.New("credential carried no room assignment")
)

// Resolve reconciles the source with the credential reply's call id and
// returns the room id to join. A provided room id must not be contradicted
// by the credential; a self-allocated session must receive one from it.
func (s RoomSource) Resolve(credCallID string) (string, error) {
	if s.provided {
		if credCallID != "" && credCallID != s.id {
			return "", ErrRoomMismatch
		}
		return s.id, nil
	}
	if credCallID == "" {
		return "", ErrNoRoomAssigned
	}
	return credCallID, nil
}
