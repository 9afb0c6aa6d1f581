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

// Package integration bridges the chat core to an external bot pipeline
// over redis pub/sub: every stored user message is published outbound, and
// externally authored sends come back on a second channel.
package integration

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/chatd/models"
)

const (
	// MessageChannel carries a copy of each stored user message.
	MessageChannel = "chat:relay:messages"
	// SendChannel carries inbound externally authored sends.
	SendChannel = "chat:relay:send"

	outboundBufferSize = 256
)

// ExternalSender is the injection point the relay feeds inbound sends to.
// chat.Service satisfies it.
type ExternalSender interface {
	HandleExternalSend(roomID, text string)
}

type externalSend struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// RedisRelay implements the chat relay boundary on redis pub/sub.
// Publishing is fire-and-forget: OnUserMessage only hands the message to a
// buffered channel drained by one publisher goroutine, so a slow or stalled
// broker never blocks or fails message dispatch.
type RedisRelay struct {
	rdb      *redis.Client
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	outbound chan models.Message
}

func NewRedisRelay(rdb *redis.Client, log *slog.Logger) *RedisRelay {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisRelay{
		rdb:      rdb,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		outbound: make(chan models.Message, outboundBufferSize),
	}
	go r.publish()
	return r
}

// OnUserMessage queues one stored user message for publication. It never
// runs I/O on the caller's stack; when the buffer is full the message is
// dropped and logged, and the broker falls behind rather than dispatch.
func (r *RedisRelay) OnUserMessage(msg models.Message) {
	select {
	case r.outbound <- msg:
	default:
		r.log.Warn("dropping relay message, outbound buffer full", "message_id", msg.MessageID)
	}
}

// publish drains the outbound buffer. Marshal and network errors are logged
// and the message is skipped; one bad publish never blocks the ones behind it.
func (r *RedisRelay) publish() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg := <-r.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				r.log.Error("failed to marshal relay message", "error", err)
				continue
			}
			if err := r.rdb.Publish(r.ctx, MessageChannel, data).Err(); err != nil {
				r.log.Error("failed to publish relay message", "message_id", msg.MessageID, "error", err)
			}
		}
	}
}

// Listen subscribes to the inbound send channel and injects each decoded
// send into the core. It returns after starting the consumer goroutine.
func (r *RedisRelay) Listen(sender ExternalSender) {
	pubsub := r.rdb.Subscribe(r.ctx, SendChannel)

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-r.ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var send externalSend
				if err := json.Unmarshal([]byte(msg.Payload), &send); err != nil {
					r.log.Warn("discarding malformed relay send", "error", err)
					continue
				}
				sender.HandleExternalSend(send.RoomID, send.Text)
			}
		}
	}()
}

func (r *RedisRelay) Close() error {
	r.cancel()
	return r.rdb.Close()
}
