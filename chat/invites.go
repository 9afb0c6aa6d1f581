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
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efchatnet/chatd/models"
)

// Invite redemption failure reasons, surfaced verbatim to clients.
const (
	ReasonInviteInvalid = "Invalid invite token"
	ReasonInviteUsed    = "Invite already used"
	ReasonInviteExpired = "Invite expired"
)

// HashToken derives the one-way digest under which an invite is stored.
// The raw token exists only in the issuance reply.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RedeemResult reports the outcome of a redemption attempt. Reason is set
// only when OK is false.
type RedeemResult struct {
	OK        bool
	Reason    string
	RoomID    string
	InviteID  string
	TokenHash string
}

// InviteManager owns invite issuance and the out-of-band consumed set.
// A token transitions unconsumed to consumed exactly once.
type InviteManager struct {
	mu       sync.Mutex
	invites  map[string]models.Invite
	consumed map[string]struct{}
}

func NewInviteManager() *InviteManager {
	return &InviteManager{
		invites:  make(map[string]models.Invite),
		consumed: make(map[string]struct{}),
	}
}

// Issue creates an invite for roomID expiring ttlHours from now. The token
// is a fresh random UUID; only its hash is kept as the lookup key.
func (m *InviteManager) Issue(roomID string, ttlHours int) models.Invite {
	token := uuid.NewString()
	now := time.Now().UTC()
	invite := models.Invite{
		InviteID:  uuid.NewString(),
		RoomID:    roomID,
		Token:     token,
		TokenHash: HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlHours) * time.Hour),
	}

	m.mu.Lock()
	m.invites[invite.TokenHash] = invite
	m.mu.Unlock()
	return invite
}

// Redeem consumes token if it is known, unconsumed and unexpired, in that
// check order. Consumption is tested before expiry, so a token consumed
// before it expired keeps reporting already-used afterwards.
func (m *InviteManager) Redeem(token string) RedeemResult {
	if token == "" {
		return RedeemResult{Reason: ReasonInviteInvalid}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hash := HashToken(token)
	invite, ok := m.invites[hash]
	if !ok {
		return RedeemResult{Reason: ReasonInviteInvalid}
	}
	if _, used := m.consumed[hash]; used {
		return RedeemResult{Reason: ReasonInviteUsed}
	}
	if time.Now().After(invite.ExpiresAt) {
		return RedeemResult{Reason: ReasonInviteExpired}
	}

	m.consumed[hash] = struct{}{}
	return RedeemResult{
		OK:        true,
		RoomID:    invite.RoomID,
		InviteID:  invite.InviteID,
		TokenHash: hash,
	}
}

// LookupByToken is a non-mutating inspection of the invite behind token.
func (m *InviteManager) LookupByToken(token string) (models.Invite, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	invite, ok := m.invites[HashToken(token)]
	return invite, ok
}

// Restore re-registers a persisted invite without re-running the redeem
// protocol; expiry is not re-validated against the current clock. Used
// only during durable-state reload.
func (m *InviteManager) Restore(invite models.Invite) {
	invite.Token = ""
	m.mu.Lock()
	m.invites[invite.TokenHash] = invite
	m.mu.Unlock()
}

// MarkConsumed replays a prior consumption during reload.
func (m *InviteManager) MarkConsumed(tokenHash string) {
	m.mu.Lock()
	m.consumed[tokenHash] = struct{}{}
	m.mu.Unlock()
}
