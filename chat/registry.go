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

	"github.com/efchatnet/chatd/models"
)

// Conn is the outbound half of one client connection as the core sees it.
// Send must not block the caller; the transport buffers or drops.
type Conn interface {
	Send(event models.ServerEvent)
}

// ConnectionRegistry maps session ids to live connections. A session has
// at most one live connection; a new hello for the same id replaces the
// prior entry and only the newest registration receives sends.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]Conn)}
}

func (r *ConnectionRegistry) Register(sessionID string, conn Conn) {
	r.mu.Lock()
	r.conns[sessionID] = conn
	r.mu.Unlock()
}

// Deregister removes the entry for sessionID only when conn is still the
// registered connection, so the close of a replaced socket cannot evict a
// newer registration.
func (r *ConnectionRegistry) Deregister(sessionID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[sessionID]; ok && current == conn {
		delete(r.conns, sessionID)
		return true
	}
	return false
}

func (r *ConnectionRegistry) Get(sessionID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[sessionID]
	return conn, ok
}

func (r *ConnectionRegistry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}
