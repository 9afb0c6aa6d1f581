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

// Package chat implements the in-memory chat domain engine: session
// identity, room membership, the message log, invite lifecycle and the
// dispatch rules that fan events out to live connections. Durable writes
// go through the write-behind queue in the storage package and never block
// dispatch.
package chat

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/efchatnet/chatd/models"
	"github.com/efchatnet/chatd/storage"
)

// DefaultRoomName is the public room every session is auto-joined to.
const DefaultRoomName = "general"

const (
	systemSessionID  = "system"
	relaySessionID   = "relay"
	relayDisplayName = "relay"
)

// Relay observes every successfully stored user message. It is the hook
// for the external bot-command pipeline; relay-authored replies come back
// in through HandleExternalSend.
type Relay interface {
	OnUserMessage(msg models.Message)
}

// Config assembles a Service. Queue is required; Relay and Logger are
// optional.
type Config struct {
	Queue          *storage.Queue
	InviteTTLHours int
	Relay          Relay
	Logger         *slog.Logger
}

// Service owns the domain managers, the connection registry and the
// persistence queue. Every protocol operation runs under one service
// mutex, so concurrent connection goroutines observe the same
// one-flow-at-a-time ordering the design assumes.
type Service struct {
	mu       sync.Mutex
	log      *slog.Logger
	sessions *SessionManager
	rooms    *RoomManager
	messages *MessageStore
	invites  *InviteManager
	registry *ConnectionRegistry
	queue    *storage.Queue
	relay    Relay

	inviteTTLHours int
	defaultRoom    models.Room
}

// NewService builds a Service, replays durable state through the queue's
// read path and ensures the default room exists. A reload failure is fatal
// to startup.
func NewService(cfg Config) (*Service, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.InviteTTLHours
	if ttl <= 0 {
		ttl = 24
	}

	s := &Service{
		log:            log,
		sessions:       NewSessionManager(),
		rooms:          NewRoomManager(),
		messages:       NewMessageStore(),
		invites:        NewInviteManager(),
		registry:       NewConnectionRegistry(),
		queue:          cfg.Queue,
		relay:          cfg.Relay,
		inviteTTLHours: ttl,
	}

	if err := s.reload(); err != nil {
		return nil, fmt.Errorf("reload durable state: %w", err)
	}

	s.defaultRoom = s.rooms.Ensure(DefaultRoomName, models.VisibilityPublic, systemSessionID)
	s.queue.PersistRoom(s.defaultRoom)

	return s, nil
}

// reload rehydrates rooms, memberships, messages and invites from durable
// storage. An invite row is only restored when its created event was
// flushed; a row whose consumed event was flushed comes back pre-consumed.
func (s *Service) reload() error {
	rooms, err := s.queue.LoadRooms()
	if err != nil {
		return err
	}
	for _, room := range rooms {
		s.rooms.Restore(room)
	}

	memberships, err := s.queue.LoadMemberships()
	if err != nil {
		return err
	}
	for _, m := range memberships {
		s.rooms.AddMember(m.RoomID, m.SessionID, m.JoinedAt)
	}

	messages, err := s.queue.LoadMessages()
	if err != nil {
		return err
	}
	for _, msg := range messages {
		s.messages.Import(msg)
	}

	invites, err := s.queue.LoadInvites()
	if err != nil {
		return err
	}
	events, err := s.queue.LoadInviteEvents()
	if err != nil {
		return err
	}
	for _, invite := range invites {
		if _, created := events.CreatedHashes[invite.TokenHash]; !created {
			continue
		}
		s.invites.Restore(invite)
		if _, consumed := events.ConsumedHashes[invite.TokenHash]; consumed {
			s.invites.MarkConsumed(invite.TokenHash)
		}
	}

	s.log.Info("durable state reloaded",
		"rooms", len(rooms),
		"memberships", len(memberships),
		"messages", len(messages),
		"invites", len(invites))
	return nil
}

// DefaultRoom returns the room every hello auto-joins.
func (s *Service) DefaultRoom() models.Room {
	return s.defaultRoom
}

func (s *Service) Sessions() *SessionManager { return s.sessions }
func (s *Service) Rooms() *RoomManager       { return s.rooms }
func (s *Service) Messages() *MessageStore   { return s.messages }
func (s *Service) Invites() *InviteManager   { return s.invites }

// ToSession delivers event to the session's live connection, if any.
func (s *Service) ToSession(sessionID string, event models.ServerEvent) {
	if conn, ok := s.registry.Get(sessionID); ok {
		conn.Send(event)
	}
}

// ToAll delivers event to every live connection except excludeID.
func (s *Service) ToAll(event models.ServerEvent, excludeID string) {
	for _, id := range s.registry.SessionIDs() {
		if id == excludeID {
			continue
		}
		s.ToSession(id, event)
	}
}

// ToRoomMembers delivers event to the room's members. It resolves the
// membership set only; it never iterates all connections.
func (s *Service) ToRoomMembers(roomID string, event models.ServerEvent, excludeID string) {
	for _, member := range s.rooms.MembersOf(roomID) {
		if member.SessionID == excludeID {
			continue
		}
		s.ToSession(member.SessionID, event)
	}
}

// HandleExternalSend injects an externally authored message, attributed to
// the reserved relay identity, stored and broadcast exactly like a user
// message. It is not forwarded back to the relay.
func (s *Service) HandleExternalSend(roomID, text string) {
	if roomID == "" || text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.messages.Append(roomID, relaySessionID, relayDisplayName, text)
	s.queue.PersistMessage(msg)
	s.ToRoomMembers(roomID, models.ServerEvent{Type: models.EventMessageNew, Payload: msg}, "")
}

func (s *Service) connectedUsers() []models.ConnectedUser {
	return lo.FilterMap(s.registry.SessionIDs(), func(id string, _ int) (models.ConnectedUser, bool) {
		session, ok := s.sessions.Get(id)
		return models.ConnectedUser{SessionID: id, DisplayName: session.DisplayName}, ok
	})
}

// findConnectedByDisplayName resolves a display name among currently
// connected sessions only. Offline users cannot be messaged directly.
func (s *Service) findConnectedByDisplayName(name string) (models.Session, bool) {
	lower := strings.ToLower(name)
	for _, id := range s.registry.SessionIDs() {
		session, ok := s.sessions.Get(id)
		if ok && strings.ToLower(session.DisplayName) == lower {
			return session, true
		}
	}
	return models.Session{}, false
}

// getOrCreateDirectRoom finds the canonical direct room for the unordered
// session pair, or creates it. The room name is derived from the sorted
// display names; a collision with an unrelated room gets a random suffix.
// Lookup is by membership, not name, so a suffixed room is still found on
// the next call.
func (s *Service) getOrCreateDirectRoom(sessionA, sessionB string) models.Room {
	if room, ok := s.findDirectRoom(sessionA, sessionB); ok {
		return room
	}

	a, _ := s.sessions.Get(sessionA)
	b, _ := s.sessions.Get(sessionB)
	names := []string{a.DisplayName, b.DisplayName}
	sort.Strings(names)
	name := "dm:" + strings.Join(names, ",")
	if _, taken := s.rooms.GetByName(name); taken {
		name = name + "-" + uuid.NewString()[:8]
	}

	room := s.rooms.Create(name, models.VisibilityPrivate, sessionA)
	now := time.Now().UTC()
	s.rooms.AddMember(room.RoomID, sessionA, now)
	s.rooms.AddMember(room.RoomID, sessionB, now)

	s.queue.PersistRoom(room)
	s.queue.PersistMembership(models.Membership{RoomID: room.RoomID, SessionID: sessionA, JoinedAt: now})
	s.queue.PersistMembership(models.Membership{RoomID: room.RoomID, SessionID: sessionB, JoinedAt: now})
	return room
}

func (s *Service) findDirectRoom(sessionA, sessionB string) (models.Room, bool) {
	for _, room := range s.rooms.All() {
		if room.Visibility != models.VisibilityPrivate || !strings.HasPrefix(room.Name, "dm:") {
			continue
		}
		members := s.rooms.MembersOf(room.RoomID)
		if len(members) != 2 {
			continue
		}
		ids := []string{members[0].SessionID, members[1].SessionID}
		if lo.Contains(ids, sessionA) && lo.Contains(ids, sessionB) {
			return room, true
		}
	}
	return models.Room{}, false
}
