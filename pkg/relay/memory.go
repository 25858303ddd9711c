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
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// Memory is an in-process relay. It applies the same acceptance rules as
// Server and delivers each event to subscribers on its own goroutine, so
// delivery order across events is not guaranteed.
type Memory struct {
	mu     sync.Mutex
	subs   map[string]*memorySubscription
	events []nostr.Event
	wg     sync.WaitGroup
}

// NewMemory creates an empty in-process relay.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]*memorySubscription)}
}

// Publish verifies and fans out ev.
func (m *Memory) Publish(ctx context.Context, ev nostr.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if ev.ID != ev.GetID() {
		return fmt.Errorf("%w: event id does not match", ErrRejected)
	}
	if ok, _ := ev.CheckSignature(); !ok {
		return fmt.Errorf("%w: bad signature", ErrRejected)
	}

	m.mu.Lock()
	if !IsEphemeral(ev.Kind) {
		m.events = append(m.events, ev)
	}
	targets := make([]*memorySubscription, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.filter.Matches(&ev) {
			targets = append(targets, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range targets {
		m.deliver(sub, ev)
	}
	return nil
}

// Subscribe registers handler and replays stored matching events.
func (m *Memory) Subscribe(ctx context.Context, filter nostr.Filter, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	sub := &memorySubscription{id: uuid.NewString(), relay: m, filter: filter, handler: handler}

	m.mu.Lock()
	m.subs[sub.id] = sub
	var replay []nostr.Event
	for i := range m.events {
		if filter.Matches(&m.events[i]) {
			replay = append(replay, m.events[i])
		}
	}
	m.mu.Unlock()

	for _, ev := range replay {
		m.deliver(sub, ev)
	}
	return sub, nil
}

// Events returns a copy of the stored (non-ephemeral) events.
func (m *Memory) Events() []nostr.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]nostr.Event(nil), m.events...)
}

// Wait blocks until all in-flight deliveries have returned.
func (m *Memory) Wait() {
	m.wg.Wait()
}

func (m *Memory) deliver(sub *memorySubscription, ev nostr.Event) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if sub.active() {
			sub.handler(ev)
		}
	}()
}

type memorySubscription struct {
	id      string
	relay   *Memory
	filter  nostr.Filter
	handler Handler
}

func (s *memorySubscription) ID() string {
	return s.id
}

func (s *memorySubscription) Close() error {
	s.relay.mu.Lock()
	delete(s.relay.subs, s.id)
	s.relay.mu.Unlock()
	return nil
}

func (s *memorySubscription) active() bool {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	return s.relay.subs[s.id] == s
}
