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

func TestInviteManager_IssueKeepsOnlyTheHash(t *testing.T) {
	m := NewInviteManager()

	invite := m.Issue("room-1", 24)
	require.NotEmpty(t, invite.Token)
	require.Equal(t, HashToken(invite.Token), invite.TokenHash)

	stored, ok := m.LookupByToken(invite.Token)
	require.True(t, ok)
	require.Equal(t, invite.InviteID, stored.InviteID)
}

func TestInviteManager_RedeemConsumesExactlyOnce(t *testing.T) {
	m := NewInviteManager()
	invite := m.Issue("room-1", 24)

	first := m.Redeem(invite.Token)
	require.True(t, first.OK)
	require.Equal(t, "room-1", first.RoomID)
	require.Equal(t, invite.TokenHash, first.TokenHash)

	second := m.Redeem(invite.Token)
	require.False(t, second.OK)
	require.Equal(t, ReasonInviteUsed, second.Reason)
}

func TestInviteManager_RedeemUnknownToken(t *testing.T) {
	m := NewInviteManager()

	result := m.Redeem("no-such-token")
	require.False(t, result.OK)
	require.Equal(t, ReasonInviteInvalid, result.Reason)

	result = m.Redeem("")
	require.False(t, result.OK)
	require.Equal(t, ReasonInviteInvalid, result.Reason)
}

func TestInviteManager_RedeemExpired(t *testing.T) {
	m := NewInviteManager()

	// Zero TTL expires at issuance time.
	invite := m.Issue("room-1", 0)

	result := m.Redeem(invite.Token)
	require.False(t, result.OK)
	require.Equal(t, ReasonInviteExpired, result.Reason)

	// Expiry does not consume; the token stays redeemable-looking as
	// expired, never flips to already-used.
	again := m.Redeem(invite.Token)
	require.Equal(t, ReasonInviteExpired, again.Reason)

	// A negative TTL expires in the past.
	negative := m.Issue("room-1", -1)
	result = m.Redeem(negative.Token)
	require.False(t, result.OK)
	require.Equal(t, ReasonInviteExpired, result.Reason)
}

func TestInviteManager_ConsumedWinsOverExpired(t *testing.T) {
	m := NewInviteManager()

	token := "restored-token"
	invite := models.Invite{
		InviteID:  "inv-1",
		RoomID:    "room-1",
		TokenHash: HashToken(token),
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
	m.Restore(invite)
	m.MarkConsumed(invite.TokenHash)

	// Consumed before it expired: keeps reporting already-used even
	// though the expiry has since passed.
	result := m.Redeem(token)
	require.False(t, result.OK)
	require.Equal(t, ReasonInviteUsed, result.Reason)
}

func TestInviteManager_RestoreDropsRawToken(t *testing.T) {
	m := NewInviteManager()

	token := "restored-token"
	m.Restore(models.Invite{
		InviteID:  "inv-1",
		RoomID:    "room-1",
		Token:     token,
		TokenHash: HashToken(token),
		ExpiresAt: time.Now().Add(time.Hour),
	})

	stored, ok := m.LookupByToken(token)
	require.True(t, ok)
	require.Empty(t, stored.Token)

	result := m.Redeem(token)
	require.True(t, result.OK)
}
