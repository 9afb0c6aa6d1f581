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

import "time"

// Visibility controls who can discover and join a room.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the two known visibility values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Room is a named message channel. Rooms are immutable after creation
// except through membership, and are never deleted.
type Room struct {
	RoomID     string     `json:"roomId"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Membership records that a session belongs to a room. There is at most
// one membership per (room, session) pair.
type Membership struct {
	RoomID    string    `json:"roomId"`
	SessionID string    `json:"sessionId"`
	JoinedAt  time.Time `json:"joinedAt"`
}
