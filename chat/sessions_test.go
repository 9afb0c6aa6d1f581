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

	"github.com/stretchr/testify/require"
)

func TestSessionManager_DistinctIDsForSameDisplayName(t *testing.T) {
	m := NewSessionManager()

	a := m.GetOrCreate("", "alice")
	b := m.GetOrCreate("", "alice")

	require.NotEqual(t, a.SessionID, b.SessionID)
}

func TestSessionManager_ResumeKeepsNameUnlessSupplied(t *testing.T) {
	m := NewSessionManager()

	created := m.GetOrCreate("", "alice")

	resumed := m.GetOrCreate(created.SessionID, "")
	require.Equal(t, created.SessionID, resumed.SessionID)
	require.Equal(t, "alice", resumed.DisplayName)

	renamed := m.GetOrCreate(created.SessionID, "alicia")
	require.Equal(t, created.SessionID, renamed.SessionID)
	require.Equal(t, "alicia", renamed.DisplayName)

	stored, ok := m.Get(created.SessionID)
	require.True(t, ok)
	require.Equal(t, "alicia", stored.DisplayName)
}

func TestSessionManager_ResumeWithUnknownIDCreatesWithThatID(t *testing.T) {
	m := NewSessionManager()

	session := m.GetOrCreate("restored-id", "alice")
	require.Equal(t, "restored-id", session.SessionID)

	_, ok := m.Get("restored-id")
	require.True(t, ok)
}

func TestSessionManager_FindByDisplayNameIsCaseInsensitive(t *testing.T) {
	m := NewSessionManager()
	created := m.GetOrCreate("", "Alice")

	found, ok := m.FindByDisplayName("aLiCe")
	require.True(t, ok)
	require.Equal(t, created.SessionID, found.SessionID)

	_, ok = m.FindByDisplayName("bob")
	require.False(t, ok)

	_, ok = m.FindByDisplayName("")
	require.False(t, ok)
}

func TestSessionManager_List(t *testing.T) {
	m := NewSessionManager()
	m.GetOrCreate("", "alice")
	m.GetOrCreate("", "bob")

	require.Len(t, m.List(), 2)
}
