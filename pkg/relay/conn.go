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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// Conn is a websocket connection to a single NIP-01 relay.
type Conn struct {
	url    string
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	subs    map[string]*connSubscription
	waiters map[string]chan okResult

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type okResult struct {
	accepted bool
	message  string
}

// Option configures a Conn.
type Option func(*dialOptions)

type dialOptions struct {
	logger *slog.Logger
	dialer *websocket.Dialer
}

// WithLogger sets the logger used for relay notices and dropped frames.
func WithLogger(logger *slog.Logger) Option {
	return func(o *dialOptions) {
		o.logger = logger
	}
}

// WithDialer overrides websocket.DefaultDialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(o *dialOptions) {
		o.dialer = dialer
	}
}

// Dial opens a connection to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	o := dialOptions{logger: slog.Default(), dialer: websocket.DefaultDialer}
	for _, opt := range opts {
		opt(&o)
	}

	ws, _, err := o.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay %s: %w", url, err)
	}

	c := &Conn{
		url:     url,
		ws:      ws,
		logger:  o.logger.With("relay", url),
		subs:    make(map[string]*connSubscription),
		waiters: make(map[string]chan okResult),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// URL returns the relay address.
func (c *Conn) URL() string {
	return c.url
}

// Done is closed when the connection terminates.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection terminated, if it has.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

// Close terminates the connection.
func (c *Conn) Close() error {
	c.shutdown(ErrConnectionClosed)
	return nil
}

// Publish sends ["EVENT", ev] and waits for the matching OK.
func (c *Conn) Publish(ctx context.Context, ev nostr.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	ch := make(chan okResult, 1)
	c.mu.Lock()
	c.waiters[ev.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, ev.ID)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, []any{"EVENT", ev}); err != nil {
		return err
	}

	select {
	case res := <-ch:
		if !res.accepted {
			return fmt.Errorf("%w: %s", ErrRejected, res.message)
		}
		return nil
	case <-c.done:
		return c.closeErr
	case <-ctx.Done():
		return fmt.Errorf("context error: %w", ctx.Err())
	}
}

// Subscribe sends ["REQ", id, filter]. Matching events are passed to handler
// from the read loop.
func (c *Conn) Subscribe(ctx context.Context, filter nostr.Filter, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	sub := &connSubscription{id: uuid.NewString(), conn: c, filter: filter, handler: handler}
	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.write(ctx, []any{"REQ", sub.id, filter}); err != nil {
		c.removeSub(sub.id)
		return nil, err
	}
	return sub, nil
}

func (c *Conn) write(ctx context.Context, msg []any) error {
	select {
	case <-c.done:
		return c.closeErr
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write to relay: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}
		c.handleFrame(data)
	}
}

func (c *Conn) handleFrame(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
		c.logger.Debug("dropping malformed relay frame", "error", err)
		return
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		c.logger.Debug("dropping relay frame without label")
		return
	}

	switch label {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var subID string
		var ev nostr.Event
		if json.Unmarshal(frame[1], &subID) != nil || json.Unmarshal(frame[2], &ev) != nil {
			c.logger.Debug("dropping malformed EVENT frame")
			return
		}
		c.mu.Lock()
		sub := c.subs[subID]
		c.mu.Unlock()
		// Relays are untrusted; re-apply the filter before delivering.
		if sub != nil && sub.filter.Matches(&ev) {
			sub.handler(ev)
		}

	case "OK":
		if len(frame) < 3 {
			return
		}
		var id string
		var res okResult
		_ = json.Unmarshal(frame[1], &id)
		_ = json.Unmarshal(frame[2], &res.accepted)
		if len(frame) > 3 {
			_ = json.Unmarshal(frame[3], &res.message)
		}
		c.mu.Lock()
		ch := c.waiters[id]
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- res:
			default:
			}
		}

	case "EOSE":
		c.logger.Debug("end of stored events")

	case "NOTICE":
		var msg string
		if len(frame) > 1 {
			_ = json.Unmarshal(frame[1], &msg)
		}
		c.logger.Info("relay notice", "message", msg)

	case "CLOSED":
		var subID, msg string
		if len(frame) > 1 {
			_ = json.Unmarshal(frame[1], &subID)
		}
		if len(frame) > 2 {
			_ = json.Unmarshal(frame[2], &msg)
		}
		c.removeSub(subID)
		c.logger.Warn("subscription closed by relay", "subscription", subID, "message", msg)

	default:
		c.logger.Debug("ignoring relay frame", "label", label)
	}
}

func (c *Conn) removeSub(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *Conn) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.closeErr = reason
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}

type connSubscription struct {
	id      string
	conn    *Conn
	filter  nostr.Filter
	handler Handler
	once    sync.Once
}

func (s *connSubscription) ID() string {
	return s.id
}

// Close sends ["CLOSE", id]; further events for the id are dropped.
func (s *connSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.conn.removeSub(s.id)
		err = s.conn.write(context.Background(), []any{"CLOSE", s.id})
		if s.conn.Err() != nil {
			err = nil
		}
	})
	return err
}
