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
	"encoding/json"
	"strings"
	"time"

	"github.com/efchatnet/chatd/models"
)

// Protocol rejection reasons not tied to invites.
const (
	ReasonDisplayNameRequired = "Display name required"
	ReasonRoomNameRequired    = "Room name required"
	ReasonRoomNameTaken       = "Room name already exists"
	ReasonInvalidVisibility   = "Invalid room visibility"
	ReasonRoomNotFound        = "Room not found"
	ReasonPrivateRoom         = "Cannot join private room"
	ReasonNotAMember          = "Join the room before sending messages"
	ReasonTextRequired        = "Message text required"
	ReasonUserNotFound        = "User not found"
	ReasonSelfDM              = "Cannot DM yourself"
	ReasonBadPayload          = "Invalid payload"
	ReasonUnknownType         = "Unknown message type"
)

// Dispatch routes one decoded inbound envelope. sessionID is the identity
// the connection established with a prior hello, or empty; the caller must
// store the returned id, which changes only on a successful hello.
// Rejections are answered on conn and never mutate state.
func (s *Service) Dispatch(conn Conn, sessionID string, env models.ClientEnvelope) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if env.Type == models.EventHello {
		return s.handleHello(conn, sessionID, env.Payload)
	}

	// Every other operation requires an established session. Frames that
	// arrive before hello are dropped, matching the wire protocol.
	if sessionID == "" {
		return sessionID
	}

	switch env.Type {
	case models.EventRoomCreate:
		s.handleRoomCreate(conn, sessionID, env.Payload)
	case models.EventRoomJoin:
		s.handleRoomJoin(conn, sessionID, env.Payload)
	case models.EventRoomJoinByInvite:
		s.handleJoinByInvite(conn, sessionID, env.Payload)
	case models.EventMessageSend:
		s.handleMessageSend(conn, sessionID, env.Payload)
	case models.EventDMStart:
		s.handleDMStart(conn, sessionID, env.Payload)
	default:
		conn.Send(models.ErrorEvent(ReasonUnknownType))
	}
	return sessionID
}

// Disconnect deregisters the connection and announces the departure. A
// stale socket whose registration was already replaced deregisters
// nothing and stays silent.
func (s *Service) Disconnect(sessionID string, conn Conn) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.Deregister(sessionID, conn) {
		s.ToAll(models.ServerEvent{
			Type:    models.EventUserLeft,
			Payload: models.UserLeftPayload{SessionID: sessionID},
		}, sessionID)
	}
}

func (s *Service) handleHello(conn Conn, sessionID string, raw json.RawMessage) string {
	var p models.HelloPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		conn.Send(models.ErrorEvent(ReasonBadPayload))
		return sessionID
	}
	displayName := strings.TrimSpace(p.DisplayName)
	if displayName == "" {
		conn.Send(models.ErrorEvent(ReasonDisplayNameRequired))
		return sessionID
	}

	session := s.sessions.GetOrCreate(p.SessionID, displayName)
	s.registry.Register(session.SessionID, conn)

	now := time.Now().UTC()
	s.rooms.AddMember(s.defaultRoom.RoomID, session.SessionID, now)
	s.queue.PersistMembership(models.Membership{
		RoomID:    s.defaultRoom.RoomID,
		SessionID: session.SessionID,
		JoinedAt:  now,
	})

	visible := s.rooms.RoomsVisibleTo(session.SessionID)
	history := make(map[string][]models.Message, len(visible))
	for _, room := range visible {
		history[room.RoomID] = s.messages.HistoryOf(room.RoomID)
	}

	conn.Send(models.ServerEvent{
		Type: models.EventStateInit,
		Payload: models.StateInitPayload{
			Session:          session,
			Rooms:            visible,
			MessagesByRoomID: history,
			DefaultRoomID:    s.defaultRoom.RoomID,
			Users:            s.connectedUsers(),
		},
	})

	s.ToAll(models.ServerEvent{
		Type: models.EventUserJoined,
		Payload: models.UserJoinedPayload{
			SessionID:   session.SessionID,
			DisplayName: session.DisplayName,
		},
	}, session.SessionID)

	return session.SessionID
}

func (s *Service) handleRoomCreate(conn Conn, sessionID string, raw json.RawMessage) {
	var p models.RoomCreatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		conn.Send(models.ErrorEvent(ReasonBadPayload))
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		conn.Send(models.ErrorEvent(ReasonRoomNameRequired))
		return
	}
	if _, exists := s.rooms.GetByName(name); exists {
		conn.Send(models.ErrorEvent(ReasonRoomNameTaken))
		return
	}
	if !p.Visibility.Valid() {
		conn.Send(models.ErrorEvent(ReasonInvalidVisibility))
		return
	}

	room := s.rooms.Create(name, p.Visibility, sessionID)
	now := time.Now().UTC()
	s.rooms.AddMember(room.RoomID, sessionID, now)
	s.queue.PersistRoom(room)
	s.queue.PersistMembership(models.Membership{RoomID: room.RoomID, SessionID: sessionID, JoinedAt: now})

	var grant *models.InviteGrant
	if p.Visibility == models.VisibilityPrivate {
		invite := s.invites.Issue(room.RoomID, s.inviteTTLHours)
		s.queue.PersistInvite(invite)
		grant = &models.InviteGrant{
			Token:     invite.Token,
			ExpiresAt: invite.ExpiresAt.Format(time.RFC3339),
		}
	}

	created := models.ServerEvent{
		Type:    models.EventRoomCreated,
		Payload: models.RoomCreatedPayload{Room: room, Invite: grant},
	}
	if p.Visibility == models.VisibilityPublic {
		s.ToAll(created, "")
	} else {
		conn.Send(created)
	}

	s.sendRoomJoined(room.RoomID, sessionID)
}

func (s *Service) handleRoomJoin(conn Conn, sessionID string, raw json.RawMessage) {
	var p models.RoomJoinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		conn.Send(models.ErrorEvent(ReasonBadPayload))
		return
	}

	room, ok := s.rooms.GetByID(p.RoomID)
	if !ok {
		conn.Send(models.ErrorEvent(ReasonRoomNotFound))
		return
	}
	// The only way into a private room is invite redemption.
	if room.Visibility == models.VisibilityPrivate && !s.rooms.IsMember(room.RoomID, sessionID) {
		conn.Send(models.ErrorEvent(ReasonPrivateRoom))
		return
	}

	now := time.Now().UTC()
	if s.rooms.AddMember(room.RoomID, sessionID, now) {
		s.queue.PersistMembership(models.Membership{RoomID: room.RoomID, SessionID: sessionID, JoinedAt: now})
	}

	s.sendRoomJoined(room.RoomID, sessionID)
}

func (s *Service) handleJoinByInvite(conn Conn, sessionID string, raw json.RawMessage) {
	var p models.JoinByInvitePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		conn.Send(models.ErrorEvent(ReasonBadPayload))
		return
	}

	result := s.invites.Redeem(p.Token)
	if !result.OK {
		conn.Send(models.ErrorEvent(result.Reason))
		return
	}

	now := time.Now().UTC()
	s.rooms.AddMember(result.RoomID, sessionID, now)
	s.queue.PersistMembership(models.Membership{RoomID: result.RoomID, SessionID: sessionID, JoinedAt: now})
	s.queue.RecordInviteConsumption(result.TokenHash)

	s.sendRoomJoined(result.RoomID, sessionID)
}

func (s *Service) handleMessageSend(conn Conn, sessionID string, raw json.RawMessage) {
	var p models.MessageSendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		conn.Send(models.ErrorEvent(ReasonBadPayload))
		return
	}

	room, ok := s.rooms.GetByID(p.RoomID)
	if !ok {
		conn.Send(models.ErrorEvent(ReasonRoomNotFound))
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		conn.Send(models.ErrorEvent(ReasonTextRequired))
		return
	}
	if !s.rooms.IsMember(room.RoomID, sessionID) {
		conn.Send(models.ErrorEvent(ReasonNotAMember))
		return
	}

	session, _ := s.sessions.Get(sessionID)
	msg := s.messages.Append(room.RoomID, sessionID, session.DisplayName, text)
	s.queue.PersistMessage(msg)

	s.ToRoomMembers(room.RoomID, models.ServerEvent{Type: models.EventMessageNew, Payload: msg}, "")

	if s.relay != nil {
		s.relay.OnUserMessage(msg)
	}
}

func (s *Service) handleDMStart(conn Conn, sessionID string, raw json.RawMessage) {
	var p models.DMStartPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		conn.Send(models.ErrorEvent(ReasonBadPayload))
		return
	}
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		conn.Send(models.ErrorEvent(ReasonDisplayNameRequired))
		return
	}

	target, ok := s.findConnectedByDisplayName(name)
	if !ok {
		conn.Send(models.ErrorEvent(ReasonUserNotFound))
		return
	}
	if target.SessionID == sessionID {
		conn.Send(models.ErrorEvent(ReasonSelfDM))
		return
	}

	room := s.getOrCreateDirectRoom(sessionID, target.SessionID)

	created := models.ServerEvent{
		Type:    models.EventRoomCreated,
		Payload: models.RoomCreatedPayload{Room: room, Invite: nil},
	}
	s.ToSession(sessionID, created)
	s.ToSession(target.SessionID, created)

	s.sendRoomJoined(room.RoomID, sessionID)
}

// sendRoomJoined emits the asymmetric join notification: the joiner gets
// the full room and history, every other current member gets presence
// only. The asymmetry avoids re-sending history to people already there.
func (s *Service) sendRoomJoined(roomID, joiningSessionID string) {
	room, _ := s.rooms.GetByID(roomID)
	session, _ := s.sessions.Get(joiningSessionID)
	history := s.messages.HistoryOf(roomID)

	s.ToSession(joiningSessionID, models.ServerEvent{
		Type: models.EventRoomJoined,
		Payload: models.RoomJoinedPayload{
			RoomID:      roomID,
			SessionID:   joiningSessionID,
			DisplayName: session.DisplayName,
			Room:        &room,
			History:     history,
			IsSelf:      true,
		},
	})

	s.ToRoomMembers(roomID, models.ServerEvent{
		Type: models.EventRoomJoined,
		Payload: models.RoomJoinedPayload{
			RoomID:      roomID,
			SessionID:   joiningSessionID,
			DisplayName: session.DisplayName,
			IsSelf:      false,
		},
	}, joiningSessionID)
}
