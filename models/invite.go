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

// Invite grants single-use, time-limited access to one private room.
//
// Token is the secret handed to the client exactly once at issuance. Only
// TokenHash (a one-way digest) is ever stored durably, so a storage leak
// cannot expose usable tokens. Invites restored from storage have an empty
// Token.
type Invite struct {
	InviteID  string    `json:"inviteId"`
	RoomID    string    `json:"roomId"`
	Token     string    `json:"-"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
