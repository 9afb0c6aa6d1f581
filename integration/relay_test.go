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

package integration

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/efchatnet/chatd/models"
)

// stalledBroker accepts TCP connections and then never answers, the worst
// case for anything doing a synchronous round trip against it.
func stalledBroker(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		var held []net.Conn
		for {
			conn, err := ln.Accept()
			if err != nil {
				for _, c := range held {
					c.Close()
				}
				return
			}
			held = append(held, conn)
		}
	}()
	return ln
}

func TestOnUserMessageNeverBlocksOnStalledBroker(t *testing.T) {
	ln := stalledBroker(t)

	rdb := redis.NewClient(&redis.Options{Addr: ln.Addr().String()})
	relay := NewRedisRelay(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer relay.Close()

	// Overfill the outbound buffer; every call must still return
	// immediately, with the overflow dropped rather than queued on the
	// caller's stack.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < outboundBufferSize+16; i++ {
			relay.OnUserMessage(models.Message{
				MessageID: fmt.Sprintf("msg-%d", i),
				RoomID:    "r1",
				Text:      "hi",
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnUserMessage blocked with a stalled broker")
	}
}
