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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// maxSeen bounds the duplicate-suppression set of a pool subscription.
const maxSeen = 4096

// Pool fans publishes and subscriptions out to several relays. A publish
// succeeds when at least one relay accepts the event; subscribers see each
// event id once even when several relays deliver it.
type Pool struct {
	clients []Client
	logger  *slog.Logger
}

// NewPool creates a pool over already connected clients.
func NewPool(clients ...Client) *Pool {
	return &Pool{clients: clients, logger: slog.Default()}
}

// DialPool connects to every url concurrently. If any dial fails the
// connections already made are closed.
func DialPool(ctx context.Context, urls []string, opts ...Option) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one relay url is required")
	}

	conns := make([]*Conn, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			conn, err := Dial(gctx, url, opts...)
			if err != nil {
				return err
			}
			conns[i] = conn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, conn := range conns {
			if conn != nil {
				_ = conn.Close()
			}
		}
		return nil, err
	}

	o := dialOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	clients := make([]Client, len(conns))
	for i, conn := range conns {
		clients[i] = conn
	}
	p := NewPool(clients...)
	p.SetLogger(o.logger)
	return p, nil
}

// SetLogger sets the pool logger.
func (p *Pool) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Clients returns the pooled clients.
func (p *Pool) Clients() []Client {
	return p.clients
}

// Close closes every pooled client that can be closed.
func (p *Pool) Close() error {
	var errs []error
	for _, c := range p.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Publish sends ev to every relay and returns nil if any accepted it.
func (p *Pool) Publish(ctx context.Context, ev nostr.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	errs := make([]error, len(p.clients))
	var g errgroup.Group
	for i, c := range p.clients {
		g.Go(func() error {
			errs[i] = c.Publish(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			p.logger.Debug("relay publish failed", "event", ev.ID, "error", err)
			failed = append(failed, err)
		}
	}
	if len(p.clients) > 0 && len(failed) == len(p.clients) {
		return errors.Join(failed...)
	}
	return nil
}

// Subscribe opens the filter on every relay. If any relay refuses, the
// subscriptions already opened are closed and the error is returned.
func (p *Pool) Subscribe(ctx context.Context, filter nostr.Filter, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	ps := &poolSubscription{seen: make(map[string]struct{})}
	dedup := func(ev nostr.Event) {
		if ps.markSeen(ev.ID) {
			handler(ev)
		}
	}

	subs := make([]Subscription, len(p.clients))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range p.clients {
		g.Go(func() error {
			sub, err := c.Subscribe(gctx, filter, dedup)
			if err != nil {
				return err
			}
			subs[i] = sub
			return nil
		})
	}
	err := g.Wait()

	for _, sub := range subs {
		if sub != nil {
			ps.subs = append(ps.subs, sub)
		}
	}
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return ps, nil
}

type poolSubscription struct {
	subs []Subscription

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func (s *poolSubscription) ID() string {
	if len(s.subs) == 0 {
		return ""
	}
	return s.subs[0].ID()
}

func (s *poolSubscription) Close() error {
	var errs []error
	for _, sub := range s.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// markSeen records id and reports whether it was new.
func (s *poolSubscription) markSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > maxSeen {
		delete(s.seen, s.order[0])
		s.order = s.order[1:]
	}
	return true
}
