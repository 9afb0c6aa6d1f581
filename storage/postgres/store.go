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

package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/efchatnet/chatd/models"
	"github.com/efchatnet/chatd/storage"
)

// Store is the PostgreSQL storage backend. Invite rows carry only the
// token hash; the raw token is never written anywhere.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) PersistRoom(room models.Room) error {
	_, err := s.db.Exec(`
		INSERT INTO rooms (room_id, name, visibility, created_by_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO NOTHING`,
		room.RoomID, room.Name, string(room.Visibility), room.CreatedBy, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("persist room: %w", err)
	}
	return nil
}

func (s *Store) PersistMembership(m models.Membership) error {
	_, err := s.db.Exec(`
		INSERT INTO memberships (room_id, session_id, joined_at)
		VALUES ($1, $2, $3)`,
		m.RoomID, m.SessionID, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("persist membership: %w", err)
	}
	return nil
}

func (s *Store) PersistMessage(msg models.Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (message_id, room_id, session_id, display_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.MessageID, msg.RoomID, msg.SessionID, msg.DisplayName, msg.Text, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	return nil
}

// PersistInvite writes the invite row and its created event in one
// transaction, so reload either sees both or neither.
func (s *Store) PersistInvite(invite models.Invite) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persist invite: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO invites (invite_id, room_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		invite.InviteID, invite.RoomID, invite.TokenHash, invite.CreatedAt, invite.ExpiresAt)
	if err != nil {
		return fmt.Errorf("persist invite: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO invite_events (token_hash, event_type, created_at)
		VALUES ($1, 'created', $2)`,
		invite.TokenHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persist invite event: %w", err)
	}

	return tx.Commit()
}

func (s *Store) RecordInviteConsumption(tokenHash string) error {
	_, err := s.db.Exec(`
		INSERT INTO invite_events (token_hash, event_type, created_at)
		VALUES ($1, 'consumed', $2)`,
		tokenHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record invite consumption: %w", err)
	}
	return nil
}

func (s *Store) LoadRooms() ([]models.Room, error) {
	rows, err := s.db.Query(`
		SELECT room_id, name, visibility, created_by_session_id, created_at FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var room models.Room
		var visibility string
		if err := rows.Scan(&room.RoomID, &room.Name, &visibility, &room.CreatedBy, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("load rooms: %w", err)
		}
		room.Visibility = models.Visibility(visibility)
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *Store) LoadMemberships() ([]models.Membership, error) {
	rows, err := s.db.Query(`
		SELECT room_id, session_id, joined_at FROM memberships ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.RoomID, &m.SessionID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("load memberships: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) LoadMessages() ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT message_id, room_id, session_id, display_name, text, created_at
		FROM messages ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.MessageID, &msg.RoomID, &msg.SessionID, &msg.DisplayName, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Store) LoadInvites() ([]models.Invite, error) {
	rows, err := s.db.Query(`
		SELECT invite_id, room_id, token_hash, created_at, expires_at FROM invites`)
	if err != nil {
		return nil, fmt.Errorf("load invites: %w", err)
	}
	defer rows.Close()

	var out []models.Invite
	for rows.Next() {
		var invite models.Invite
		if err := rows.Scan(&invite.InviteID, &invite.RoomID, &invite.TokenHash, &invite.CreatedAt, &invite.ExpiresAt); err != nil {
			return nil, fmt.Errorf("load invites: %w", err)
		}
		out = append(out, invite)
	}
	return out, rows.Err()
}

func (s *Store) LoadInviteEvents() (storage.InviteEvents, error) {
	events := storage.InviteEvents{
		CreatedHashes:  make(map[string]struct{}),
		ConsumedHashes: make(map[string]struct{}),
	}

	rows, err := s.db.Query(`SELECT token_hash, event_type FROM invite_events`)
	if err != nil {
		return events, fmt.Errorf("load invite events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash, eventType string
		if err := rows.Scan(&hash, &eventType); err != nil {
			return events, fmt.Errorf("load invite events: %w", err)
		}
		switch eventType {
		case "created":
			events.CreatedHashes[hash] = struct{}{}
		case "consumed":
			events.ConsumedHashes[hash] = struct{}{}
		}
	}
	return events, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
