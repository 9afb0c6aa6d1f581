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

// MessageStore is a single global append-only log. Insertion order is the
// source of ordering truth; room history is an order-preserving projection
// of the log. History is only read on join/resume, so the linear scan in
// HistoryOf is acceptable.
type MessageStore struct {
	mu  sync.RWMutex
	log []models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append assigns a fresh id and timestamp and appends to the log tail.
// It always succeeds.
func (s *MessageStore) Append(roomID, sessionID, displayName, text string) models.Message {
	msg := models.Message{
		MessageID:   uuid.NewString(),
		RoomID:      roomID,
		SessionID:   sessionID,
		DisplayName: displayName,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.log = append(s.log, msg)
	s.mu.Unlock()
	return msg
}

// Import appends a previously persisted message verbatim, keeping its id
// and timestamp. Used only during durable-state reload.
func (s *MessageStore) Import(msg models.Message) {
	s.mu.Lock()
	s.log = append(s.log, msg)
	s.mu.Unlock()
}

// HistoryOf returns the room's messages in log order. An unknown or empty
// room yields an empty slice.
func (s *MessageStore) HistoryOf(roomID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Message{}
	for _, msg := range s.log {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out
}
