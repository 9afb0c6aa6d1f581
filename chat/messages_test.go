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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/efchatnet/chatd/models"
)

func TestMessageStore_HistoryPreservesInsertionOrderPerRoom(t *testing.T) {
	s := NewMessageStore()

	first := s.Append("room-a", "s1", "alice", "one")
	s.Append("room-b", "s2", "bob", "noise")
	second := s.Append("room-a", "s1", "alice", "two")
	third := s.Append("room-a", "s2", "bob", "three")

	history := s.HistoryOf("room-a")
	require.Len(t, history, 3)
	require.Equal(t, []string{first.MessageID, second.MessageID, third.MessageID},
		[]string{history[0].MessageID, history[1].MessageID, history[2].MessageID})

	for _, msg := range history {
		require.Equal(t, "room-a", msg.RoomID)
	}
}

func TestMessageStore_EmptyRoomHasEmptyHistory(t *testing.T) {
	s := NewMessageStore()
	require.Empty(t, s.HistoryOf("nowhere"))
}

func TestMessageStore_ImportKeepsIDAndTimestamp(t *testing.T) {
	s := NewMessageStore()
	msg := models.Message{
		MessageID:   "msg-1",
		RoomID:      "room-a",
		SessionID:   "s1",
		DisplayName: "alice",
		Text:        "restored",
		CreatedAt:   time.Now().Add(-time.Hour).UTC(),
	}

	s.Import(msg)

	history := s.HistoryOf("room-a")
	require.Len(t, history, 1)
	require.Equal(t, msg, history[0])
}
