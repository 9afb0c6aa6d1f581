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

// Package memory is the in-process storage backend. It honors the same
// schema contract as the postgres backend and backs the server when no
// database is configured, as well as the tests.
package memory

import (
	"sort"
	"sync"

	"github.com/efchatnet/chatd/models"
	"github.com/efchatnet/chatd/storage"
)

type inviteEvent struct {
	tokenHash string
	eventType string
}

type Store struct {
	mu          sync.Mutex
	rooms       map[string]models.Room
	roomOrder   []string
	memberships []models.Membership
	messages    []models.Message
	invites     []models.Invite
	events      []inviteEvent
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]models.Room)}
}

func (s *Store) Migrate() error { return nil }

func (s *Store) PersistRoom(room models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.RoomID]; ok {
		return nil
	}
	s.rooms[room.RoomID] = room
	s.roomOrder = append(s.roomOrder, room.RoomID)
	return nil
}

func (s *Store) PersistMembership(m models.Membership) error {
	s.mu.Lock()
	s.memberships = append(s.memberships, m)
	s.mu.Unlock()
	return nil
}

func (s *Store) PersistMessage(msg models.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return nil
}

func (s *Store) PersistInvite(invite models.Invite) error {
	s.mu.Lock()
	s.invites = append(s.invites, invite)
	s.events = append(s.events, inviteEvent{tokenHash: invite.TokenHash, eventType: "created"})
	s.mu.Unlock()
	return nil
}

func (s *Store) RecordInviteConsumption(tokenHash string) error {
	s.mu.Lock()
	s.events = append(s.events, inviteEvent{tokenHash: tokenHash, eventType: "consumed"})
	s.mu.Unlock()
	return nil
}

func (s *Store) LoadRooms() ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Room, 0, len(s.roomOrder))
	for _, id := range s.roomOrder {
		out = append(out, s.rooms[id])
	}
	return out, nil
}

func (s *Store) LoadMemberships() ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Membership(nil), s.memberships...), nil
}

func (s *Store) LoadMessages() ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Message(nil), s.messages...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) LoadInvites() ([]models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Invite(nil), s.invites...), nil
}

func (s *Store) LoadInviteEvents() (storage.InviteEvents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := storage.InviteEvents{
		CreatedHashes:  make(map[string]struct{}),
		ConsumedHashes: make(map[string]struct{}),
	}
	for _, ev := range s.events {
		switch ev.eventType {
		case "created":
			events.CreatedHashes[ev.tokenHash] = struct{}{}
		case "consumed":
			events.ConsumedHashes[ev.tokenHash] = struct{}{}
		}
	}
	return events, nil
}

func (s *Store) Close() error { return nil }
