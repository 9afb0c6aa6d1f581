// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package models

import "encoding/json"

// EventType tags the envelopes exchanged with clients. The set is closed:
// the dispatcher matches inbound types exhaustively and answers anything
// else with an error envelope.
type EventType string

// Inbound event types.
const (
	EventHello            EventType = "hello"
	EventRoomCreate       EventType = "room.create"
	EventRoomJoin         EventType = "room.join"
	EventRoomJoinByInvite EventType = "room.joinByInvite"
	EventMessageSend      EventType = "message.send"
	EventDMStart          EventType = "dm.start"
)

// Outbound event types.
const (
	EventStateInit   EventType = "state.init"
	EventRoomCreated EventType = "room.created"
	EventRoomJoined  EventType = "room.joined"
	EventMessageNew  EventType = "message.new"
	EventUserJoined  EventType = "user.joined"
	EventUserLeft    EventType = "user.left"
	EventError       EventType = "error"
)

// ClientEnvelope is the decoded form of one inbound frame. The payload is
// left raw so the dispatcher can bind it to the type-specific struct.
type ClientEnvelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent is one outbound frame. Exactly one of Payload or Error is
// set; protocol rejections travel as Error with no payload.
type ServerEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// ErrorEvent builds the error envelope sent back to the originating
// connection on a protocol rejection.
func ErrorEvent(reason string) ServerEvent {
	return ServerEvent{Type: EventError, Error: reason}
}

// HelloPayload identifies the caller. Supplying a previously issued
// session id resumes that session across reconnects.
type HelloPayload struct {
	DisplayName string `json:"displayName"`
	SessionID   string `json:"sessionId,omitempty"`
}

type RoomCreatePayload struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
}

type RoomJoinPayload struct {
	RoomID string `json:"roomId"`
}

type JoinByInvitePayload struct {
	Token string `json:"token"`
}

type MessageSendPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type DMStartPayload struct {
	DisplayName string `json:"displayName"`
}

// ConnectedUser is the presence summary carried by state.init.
type ConnectedUser struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

// StateInitPayload is the full reply to hello: the caller's session, every
// room visible to it with per-room history, and current presence.
type StateInitPayload struct {
	Session          Session              `json:"session"`
	Rooms            []Room               `json:"rooms"`
	MessagesByRoomID map[string][]Message `json:"messagesByRoomId"`
	DefaultRoomID    string               `json:"defaultRoomId"`
	Users            []ConnectedUser      `json:"users"`
}

// InviteGrant is the one-time disclosure of an invite token to the room
// creator. The token never appears anywhere else.
type InviteGrant struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type RoomCreatedPayload struct {
	Room   Room         `json:"room"`
	Invite *InviteGrant `json:"invite"`
}

// RoomJoinedPayload has two shapes: the joining connection gets the full
// room and history (IsSelf true); existing members get presence only.
type RoomJoinedPayload struct {
	RoomID      string    `json:"roomId"`
	SessionID   string    `json:"sessionId"`
	DisplayName string    `json:"displayName"`
	Room        *Room     `json:"room,omitempty"`
	History     []Message `json:"history,omitempty"`
	IsSelf      bool      `json:"isSelf"`
}

type UserJoinedPayload struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type UserLeftPayload struct {
	SessionID string `json:"sessionId"`
}
