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

// Package transport owns the WebSocket edge: upgrading connections,
// framing, decoding envelopes and pushing serialized events back out. The
// chat core only ever sees chat.Conn and decoded envelopes.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efchatnet/chatd/chat"
	"github.com/efchatnet/chatd/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 256
)

// Handler upgrades HTTP requests to WebSocket connections and runs their
// read/write pumps against the chat service.
type Handler struct {
	service  *chat.Service
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(service *chat.Service, log *slog.Logger, allowedOrigins []string) *Handler {
	if log == nil {
		log = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Handler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. The read pump runs on the request goroutine.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &connection{
		ws:      ws,
		send:    make(chan models.ServerEvent, sendBufferSize),
		service: h.service,
		log:     h.log,
		addr:    r.RemoteAddr,
	}

	go c.writePump()
	c.readPump()
}

// connection is one live client socket. sessionID is bound by the first
// successful hello and is touched only from the read pump.
type connection struct {
	ws        *websocket.Conn
	send      chan models.ServerEvent
	service   *chat.Service
	log       *slog.Logger
	addr      string
	sessionID string
}

// Send queues an event for delivery. It never blocks dispatch: when the
// buffer is full the event is dropped and logged, and the slow client
// falls behind rather than the room.
func (c *connection) Send(event models.ServerEvent) {
	select {
	case c.send <- event:
	default:
		c.log.Warn("dropping event for slow client", "remote", c.addr, "type", event.Type)
	}
}

func (c *connection) readPump() {
	defer func() {
		c.service.Disconnect(c.sessionID, c)
		close(c.send)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("websocket read error", "remote", c.addr, "error", err)
			}
			return
		}

		var env models.ClientEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed input is answered, not fatal.
			c.Send(models.ErrorEvent("Invalid JSON"))
			continue
		}

		c.sessionID = c.service.Dispatch(c, c.sessionID, env)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
