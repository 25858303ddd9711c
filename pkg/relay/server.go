// Copyright (C) 2025 SAGE-X Project
//
// This file is part of nostr-connect-go.
//
// nostr-connect-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nostr-connect-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with nostr-connect-go.  If not, see <https://www.gnu.org/licenses/>.

package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// DefaultMaxStored bounds the number of regular events a Server keeps.
const DefaultMaxStored = 10000

// Server is a small NIP-01 relay served over websocket. It verifies event
// signatures, keeps regular events in memory and never stores ephemeral ones.
type Server struct {
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	maxStored int

	mu      sync.RWMutex
	events  []nostr.Event
	clients map[*serverClient]struct{}
}

type serverClient struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string][]nostr.Filter
}

// NewServer creates a relay server.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:    slog.Default(),
		maxStored: DefaultMaxStored,
		clients:   make(map[*serverClient]struct{}),
	}
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetMaxStored sets how many regular events are retained.
func (s *Server) SetMaxStored(n int) {
	s.maxStored = n
}

// ServeHTTP upgrades the request and serves the relay protocol until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &serverClient{ws: ws, subs: make(map[string][]nostr.Filter)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(c, data)
	}
}

func (s *Server) handleFrame(c *serverClient, data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
		c.send("NOTICE", "invalid: malformed message")
		return
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		c.send("NOTICE", "invalid: malformed message")
		return
	}

	switch label {
	case "EVENT":
		var ev nostr.Event
		if err := json.Unmarshal(frame[1], &ev); err != nil {
			c.send("NOTICE", "invalid: malformed event")
			return
		}
		s.handleEvent(c, ev)

	case "REQ":
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil || subID == "" {
			c.send("NOTICE", "invalid: missing subscription id")
			return
		}
		filters := make([]nostr.Filter, 0, len(frame)-2)
		for _, raw := range frame[2:] {
			var f nostr.Filter
			if err := json.Unmarshal(raw, &f); err != nil {
				c.send("CLOSED", subID, "invalid: malformed filter")
				return
			}
			filters = append(filters, f)
		}
		s.handleReq(c, subID, filters)

	case "CLOSE":
		var subID string
		_ = json.Unmarshal(frame[1], &subID)
		c.mu.Lock()
		delete(c.subs, subID)
		c.mu.Unlock()

	default:
		c.send("NOTICE", "unsupported: "+label)
	}
}

func (s *Server) handleEvent(c *serverClient, ev nostr.Event) {
	if ev.ID != ev.GetID() {
		c.send("OK", ev.ID, false, "invalid: event id does not match")
		return
	}
	if ok, err := ev.CheckSignature(); !ok {
		msg := "invalid: bad signature"
		if err != nil {
			msg = "invalid: " + err.Error()
		}
		c.send("OK", ev.ID, false, msg)
		return
	}

	s.mu.Lock()
	if !IsEphemeral(ev.Kind) && s.maxStored > 0 {
		s.events = append(s.events, ev)
		if over := len(s.events) - s.maxStored; over > 0 {
			s.events = append([]nostr.Event(nil), s.events[over:]...)
		}
	}
	clients := make([]*serverClient, 0, len(s.clients))
	for other := range s.clients {
		clients = append(clients, other)
	}
	s.mu.Unlock()

	c.send("OK", ev.ID, true, "")

	for _, other := range clients {
		for _, subID := range other.matching(&ev) {
			other.send("EVENT", subID, ev)
		}
	}
}

func (s *Server) handleReq(c *serverClient, subID string, filters []nostr.Filter) {
	c.mu.Lock()
	c.subs[subID] = filters
	c.mu.Unlock()

	s.mu.RLock()
	stored := append([]nostr.Event(nil), s.events...)
	s.mu.RUnlock()

	for _, f := range filters {
		sent := 0
		for i := len(stored) - 1; i >= 0; i-- {
			if f.Limit > 0 && sent >= f.Limit {
				break
			}
			if f.Matches(&stored[i]) {
				c.send("EVENT", subID, stored[i])
				sent++
			}
		}
	}
	c.send("EOSE", subID)
}

func (c *serverClient) matching(ev *nostr.Event) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, filters := range c.subs {
		for _, f := range filters {
			if f.Matches(ev) {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func (c *serverClient) send(msg ...any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteMessage(websocket.TextMessage, data)
}
