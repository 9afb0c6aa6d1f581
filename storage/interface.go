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

// Package storage defines the durable storage contract behind the
// write-behind queue. Other components never touch a Store directly; all
// writes go through the Queue and all reads happen once at boot.
package storage

import "github.com/efchatnet/chatd/models"

// InviteEvents is the replayed created/consumed event log, keyed by token
// hash. It reconstructs consumption state idempotently and guards against
// invite rows whose created event never flushed.
type InviteEvents struct {
	CreatedHashes  map[string]struct{}
	ConsumedHashes map[string]struct{}
}

// Store is one durable backend. Persist methods must be idempotent where
// the schema allows it (rooms conflict-ignore on id); load methods return
// full-table snapshots, with messages ordered by creation time.
type Store interface {
	Migrate() error

	PersistRoom(room models.Room) error
	PersistMembership(m models.Membership) error
	PersistMessage(msg models.Message) error
	// PersistInvite writes the invite row and its created event together.
	PersistInvite(invite models.Invite) error
	RecordInviteConsumption(tokenHash string) error

	LoadRooms() ([]models.Room, error)
	LoadMemberships() ([]models.Membership, error)
	LoadMessages() ([]models.Message, error)
	LoadInvites() ([]models.Invite, error)
	LoadInviteEvents() (InviteEvents, error)

	Close() error
}
