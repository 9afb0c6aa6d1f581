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

package storage

import (
	"log/slog"
	"sync"

	"github.com/efchatnet/chatd/models"
)

type writeOp struct {
	name string
	run  func() error
}

// Queue is the ordered, single-consumer write-behind log in front of a
// Store. Enqueueing never runs I/O on the caller's stack; a drain
// goroutine executes operations strictly in enqueue order. Failures are
// logged and skipped, never surfaced to the enqueuer: durability here is
// best effort, and in-memory state stays authoritative regardless.
type Queue struct {
	store Store
	log   *slog.Logger

	mu       sync.Mutex
	idle     *sync.Cond
	pending  []writeOp
	draining bool
}

func NewQueue(store Store, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{store: store, log: log}
	q.idle = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) enqueue(name string, run func() error) {
	q.mu.Lock()
	q.pending = append(q.pending, writeOp{name: name, run: run})
	if !q.draining {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()
}

// drain pops and executes until the queue is empty. One failed write never
// blocks or drops the writes behind it.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		op := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := op.run(); err != nil {
			q.log.Error("durable write failed", "op", op.name, "error", err)
		}
	}
}

// Flush blocks until every enqueued write has been attempted. Shutdown
// calls it so the tail of the log reaches the store; it is not a
// synchronous-commit path.
func (q *Queue) Flush() {
	q.mu.Lock()
	for q.draining || len(q.pending) > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

func (q *Queue) PersistRoom(room models.Room) {
	q.enqueue("persistRoom", func() error { return q.store.PersistRoom(room) })
}

func (q *Queue) PersistMembership(m models.Membership) {
	q.enqueue("persistMembership", func() error { return q.store.PersistMembership(m) })
}

func (q *Queue) PersistMessage(msg models.Message) {
	q.enqueue("persistMessage", func() error { return q.store.PersistMessage(msg) })
}

func (q *Queue) PersistInvite(invite models.Invite) {
	// The raw token never reaches the store.
	invite.Token = ""
	q.enqueue("persistInvite", func() error { return q.store.PersistInvite(invite) })
}

func (q *Queue) RecordInviteConsumption(tokenHash string) {
	q.enqueue("recordInviteConsumption", func() error { return q.store.RecordInviteConsumption(tokenHash) })
}

// The load path is synchronous and used only at boot, before any
// connection is accepted.

func (q *Queue) LoadRooms() ([]models.Room, error)             { return q.store.LoadRooms() }
func (q *Queue) LoadMemberships() ([]models.Membership, error) { return q.store.LoadMemberships() }
func (q *Queue) LoadMessages() ([]models.Message, error)       { return q.store.LoadMessages() }
func (q *Queue) LoadInvites() ([]models.Invite, error)         { return q.store.LoadInvites() }
func (q *Queue) LoadInviteEvents() (InviteEvents, error)       { return q.store.LoadInviteEvents() }
