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

func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id VARCHAR(255) PRIMARY KEY,
			name TEXT NOT NULL,
			visibility VARCHAR(20) NOT NULL CHECK (visibility IN ('public', 'private')),
			created_by_session_id VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,

		// Surrogate key: a session may re-join over time and the raw log of
		// joins is kept as written.
		`CREATE TABLE IF NOT EXISTS memberships (
			id BIGSERIAL PRIMARY KEY,
			room_id VARCHAR(255) NOT NULL,
			session_id VARCHAR(255) NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_memberships_room
		ON memberships(room_id, session_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
			message_id VARCHAR(255) PRIMARY KEY,
			room_id VARCHAR(255) NOT NULL,
			session_id VARCHAR(255) NOT NULL,
			display_name TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_created
		ON messages(created_at)`,

		// Only the token hash is stored, never the raw token.
		`CREATE TABLE IF NOT EXISTS invites (
			invite_id VARCHAR(255) PRIMARY KEY,
			room_id VARCHAR(255) NOT NULL,
			token_hash VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS invite_events (
			id BIGSERIAL PRIMARY KEY,
			token_hash VARCHAR(64) NOT NULL,
			event_type VARCHAR(20) NOT NULL CHECK (event_type IN ('created', 'consumed')),
			created_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_invite_events_hash
		ON invite_events(token_hash)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
