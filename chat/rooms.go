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

package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efchatnet/chatd/models"
)

// RoomManager owns all room records and membership sets. It does not
// enforce name uniqueness; the dispatcher rejects duplicate names before
// calling Create. Callers are likewise responsible for validating
// visibility values.
type RoomManager struct {
	mu          sync.RWMutex
	rooms       map[string]models.Room
	memberships map[string][]models.Membership
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:       make(map[string]models.Room),
		memberships: make(map[string][]models.Membership),
	}
}

func (m *RoomManager) Create(name string, visibility models.Visibility, createdBy string) models.Room {
	room := models.Room{
		RoomID:     uuid.NewString(),
		Name:       name,
		Visibility: visibility,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.rooms[room.RoomID] = room
	m.memberships[room.RoomID] = nil
	m.mu.Unlock()
	return room
}

// Restore inserts a previously persisted room verbatim. Used only during
// durable-state reload.
func (m *RoomManager) Restore(room models.Room) {
	m.mu.Lock()
	m.rooms[room.RoomID] = room
	if _, ok := m.memberships[room.RoomID]; !ok {
		m.memberships[room.RoomID] = nil
	}
	m.mu.Unlock()
}

func (m *RoomManager) GetByID(roomID string) (models.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *RoomManager) GetByName(name string) (models.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		if room.Name == name {
			return room, true
		}
	}
	return models.Room{}, false
}

// Ensure returns the room named name, creating it if absent. Only the boot
// path uses this, for the default room.
func (m *RoomManager) Ensure(name string, visibility models.Visibility, createdBy string) models.Room {
	if room, ok := m.GetByName(name); ok {
		return room
	}
	return m.Create(name, visibility, createdBy)
}

// AddMember adds sessionID to the room's membership set. Adding an
// existing member is a no-op; the return value reports whether a new
// membership was recorded.
func (m *RoomManager) AddMember(roomID, sessionID string, joinedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, member := range m.memberships[roomID] {
		if member.SessionID == sessionID {
			return false
		}
	}
	m.memberships[roomID] = append(m.memberships[roomID], models.Membership{
		RoomID:    roomID,
		SessionID: sessionID,
		JoinedAt:  joinedAt,
	})
	return true
}

func (m *RoomManager) IsMember(roomID, sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.memberships[roomID] {
		if member.SessionID == sessionID {
			return true
		}
	}
	return false
}

func (m *RoomManager) MembersOf(roomID string) []models.Membership {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Membership(nil), m.memberships[roomID]...)
}

func (m *RoomManager) ListPublic() []models.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Room
	for _, room := range m.rooms {
		if room.Visibility == models.VisibilityPublic {
			out = append(out, room)
		}
	}
	return out
}

// RoomsVisibleTo returns every public room plus every private room the
// session is already a member of. Private rooms stay invisible to
// non-members; this is the confidentiality boundary.
func (m *RoomManager) RoomsVisibleTo(sessionID string) []models.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Room
	for roomID, room := range m.rooms {
		if room.Visibility == models.VisibilityPublic {
			out = append(out, room)
			continue
		}
		for _, member := range m.memberships[roomID] {
			if member.SessionID == sessionID {
				out = append(out, room)
				break
			}
		}
	}
	return out
}

// All returns every room regardless of visibility. The dispatcher uses it
// for direct-room pair resolution.
func (m *RoomManager) All() []models.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room)
	}
	return out
}
