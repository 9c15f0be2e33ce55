// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rtc wraps the hosted real-time video service the capture flow
// joins.
//
// The service is externally owned; this package only models the capture
// side: a Credential from the backend, a RoomClient that joins a room and
// enables local tracks, and a RoomSource saying whether the room id was
// supplied by the backend or allocated here. WSRoomClient is the default
// implementation over the service's websocket signalling channel; tests use
// an in-memory fake.
package rtc
