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

func TestRoomManager_AddMemberIsIdempotent(t *testing.T) {
	m := NewRoomManager()
	room := m.Create("general", models.VisibilityPublic, "system")

	require.True(t, m.AddMember(room.RoomID, "s1", time.Now()))
	require.False(t, m.AddMember(room.RoomID, "s1", time.Now()))

	require.Len(t, m.MembersOf(room.RoomID), 1)
	require.True(t, m.IsMember(room.RoomID, "s1"))
	require.False(t, m.IsMember(room.RoomID, "s2"))
}

func TestRoomManager_EnsureReturnsExisting(t *testing.T) {
	m := NewRoomManager()

	first := m.Ensure("general", models.VisibilityPublic, "system")
	second := m.Ensure("general", models.VisibilityPublic, "someone-else")

	require.Equal(t, first.RoomID, second.RoomID)
	require.Equal(t, "system", second.CreatedBy)
}

func TestRoomManager_VisibilityFiltering(t *testing.T) {
	m := NewRoomManager()
	public := m.Create("town-square", models.VisibilityPublic, "system")
	private := m.Create("back-office", models.VisibilityPrivate, "s1")
	m.AddMember(private.RoomID, "s1", time.Now())

	roomIDs := func(rooms []models.Room) []string {
		var ids []string
		for _, r := range rooms {
			ids = append(ids, r.RoomID)
		}
		return ids
	}

	require.ElementsMatch(t, []string{public.RoomID}, roomIDs(m.ListPublic()))

	// Members see their private rooms, strangers do not.
	require.ElementsMatch(t, []string{public.RoomID, private.RoomID}, roomIDs(m.RoomsVisibleTo("s1")))
	require.ElementsMatch(t, []string{public.RoomID}, roomIDs(m.RoomsVisibleTo("s2")))
}

func TestRoomManager_RestorePreservesIdentity(t *testing.T) {
	m := NewRoomManager()
	room := models.Room{
		RoomID:     "room-1",
		Name:       "general",
		Visibility: models.VisibilityPublic,
		CreatedBy:  "system",
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	m.Restore(room)

	got, ok := m.GetByID("room-1")
	require.True(t, ok)
	require.Equal(t, room, got)

	byName, ok := m.GetByName("general")
	require.True(t, ok)
	require.Equal(t, "room-1", byName.RoomID)
}
