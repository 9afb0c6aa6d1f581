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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efchatnet/chatd/models"
)

// SessionManager maps stable session ids to display names. It is the
// lifecycle anchor for every other entity: rooms, memberships, messages
// and invites all refer to sessions by id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]models.Session)}
}

// GetOrCreate resolves requestedID to an existing session, updating its
// display name when a non-empty one is supplied, or mints a new session.
// A non-empty requestedID that is unknown becomes the id of the new
// session, so clients can resume identity across process restarts.
func (m *SessionManager) GetOrCreate(requestedID, displayName string) models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if requestedID != "" {
		if session, ok := m.sessions[requestedID]; ok {
			if displayName != "" {
				session.DisplayName = displayName
				m.sessions[requestedID] = session
			}
			return session
		}
	}

	id := requestedID
	if id == "" {
		id = uuid.NewString()
	}
	session := models.Session{
		SessionID:   id,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	m.sessions[id] = session
	return session
}

func (m *SessionManager) Get(id string) (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// FindByDisplayName returns the first session whose display name matches
// case-insensitively. This is a fallback lookup only; live-connection
// resolution in the dispatcher is authoritative for messaging.
func (m *SessionManager) FindByDisplayName(name string) (models.Session, bool) {
	if name == "" {
		return models.Session{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	lower := strings.ToLower(name)
	for _, session := range m.sessions {
		if strings.ToLower(session.DisplayName) == lower {
			return session, true
		}
	}
	return models.Session{}, false
}

func (m *SessionManager) List() []models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session)
	}
	return out
}
