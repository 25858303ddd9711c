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
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

func signedEvent(t *testing.T, kind int, content string, tags ...nostr.Tag) (nostr.Event, string) {
	t.Helper()
	sk, err := nostr.GeneratePrivateKey()
	require.NoError(t, err)
	ev := nostr.Event{Kind: kind, CreatedAt: nostr.Now(), Tags: tags, Content: content}
	require.NoError(t, ev.Sign(sk))
	return ev, sk
}

// collector gathers delivered events.
type collector struct {
	mu     sync.Mutex
	events []nostr.Event
	ch     chan nostr.Event
}

func newCollector() *collector {
	return &collector{ch: make(chan nostr.Event, 16)}
}

func (c *collector) handle(ev nostr.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.ch <- ev
}

func (c *collector) next(t *testing.T) nostr.Event {
	t.Helper()
	select {
	case ev := <-c.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nostr.Event{}
	}
}

func (c *collector) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-c.ch:
		t.Fatalf("unexpected event %s", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func startServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(NewServer())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *Conn {
	t.Helper()
	conn, err := Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestIsEphemeral(t *testing.T) {
	assert.True(t, IsEphemeral(nostr.KindNostrConnect))
	assert.False(t, IsEphemeral(nostr.KindTextNote))
	assert.False(t, IsEphemeral(30000))
}

func TestMemory_PublishSubscribe(t *testing.T) {
	// Setup
	m := NewMemory()
	ctx := context.Background()
	c := newCollector()
	_, err := m.Subscribe(ctx, nostr.Filter{Kinds: []int{nostr.KindNostrConnect}}, c.handle)
	require.NoError(t, err)

	// Execute
	ev, _ := signedEvent(t, nostr.KindNostrConnect, "hi")
	require.NoError(t, m.Publish(ctx, ev))
	other, _ := signedEvent(t, nostr.KindTextNote, "ignored")
	require.NoError(t, m.Publish(ctx, other))

	// Assert
	assert.Equal(t, ev.ID, c.next(t).ID)
	c.none(t)
	assert.Len(t, m.Events(), 1, "only the regular event is stored")
}

func TestMemory_RejectsBadSignature(t *testing.T) {
	m := NewMemory()
	ev, _ := signedEvent(t, nostr.KindTextNote, "hi")
	ev.Content = "tampered"
	ev.ID = ev.GetID()

	err := m.Publish(context.Background(), ev)

	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, m.Events())
}

func TestMemory_ReplayAndClose(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	stored, _ := signedEvent(t, nostr.KindTextNote, "stored")
	require.NoError(t, m.Publish(ctx, stored))

	c := newCollector()
	sub, err := m.Subscribe(ctx, nostr.Filter{Kinds: []int{nostr.KindTextNote}}, c.handle)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, c.next(t).ID)

	require.NoError(t, sub.Close())
	later, _ := signedEvent(t, nostr.KindTextNote, "later")
	require.NoError(t, m.Publish(ctx, later))
	m.Wait()
	c.none(t)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev, _ := signedEvent(t, nostr.KindTextNote, "x")

	assert.ErrorIs(t, m.Publish(ctx, ev), context.Canceled)
	_, err := m.Subscribe(ctx, nostr.Filter{}, func(nostr.Event) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_PublishSubscribe(t *testing.T) {
	// Setup
	url := startServer(t)
	sender := dial(t, url)
	receiver := dial(t, url)
	ctx := context.Background()

	ev, _ := signedEvent(t, nostr.KindNostrConnect, "payload", nostr.Tag{"p", strings.Repeat("a", 64)})
	c := newCollector()
	sub, err := receiver.Subscribe(ctx, nostr.Filter{
		Kinds: []int{nostr.KindNostrConnect},
		Tags:  map[string][]string{"p": {strings.Repeat("a", 64)}},
	}, c.handle)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())

	// Give the server time to register the REQ before publishing
	time.Sleep(50 * time.Millisecond)

	// Execute
	require.NoError(t, sender.Publish(ctx, ev))

	// Assert
	got := c.next(t)
	assert.Equal(t, ev.ID, got.ID)
	ok, err := got.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConn_PublishRejected(t *testing.T) {
	conn := dial(t, startServer(t))
	ev, _ := signedEvent(t, nostr.KindTextNote, "hi")
	ev.Sig = strings.Repeat("0", 128)

	err := conn.Publish(context.Background(), ev)

	assert.ErrorIs(t, err, ErrRejected)
}

func TestConn_StoredEventsReplayed(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	stored, _ := signedEvent(t, nostr.KindTextNote, "stored")
	ephemeral, _ := signedEvent(t, nostr.KindNostrConnect, "gone")
	publisher := dial(t, url)
	require.NoError(t, publisher.Publish(ctx, stored))
	require.NoError(t, publisher.Publish(ctx, ephemeral))

	c := newCollector()
	_, err := dial(t, url).Subscribe(ctx, nostr.Filter{}, c.handle)
	require.NoError(t, err)

	assert.Equal(t, stored.ID, c.next(t).ID)
	c.none(t)
}

func TestConn_ClosedSubscriptionStopsDelivery(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	receiver := dial(t, url)
	c := newCollector()
	sub, err := receiver.Subscribe(ctx, nostr.Filter{Kinds: []int{nostr.KindNostrConnect}}, c.handle)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	time.Sleep(50 * time.Millisecond)
	ev, _ := signedEvent(t, nostr.KindNostrConnect, "late")
	require.NoError(t, dial(t, url).Publish(ctx, ev))

	c.none(t)
}

func TestConn_CloseFailsOperations(t *testing.T) {
	conn := dial(t, startServer(t))
	require.NoError(t, conn.Close())
	<-conn.Done()

	ev, _ := signedEvent(t, nostr.KindTextNote, "x")
	assert.ErrorIs(t, conn.Publish(context.Background(), ev), ErrConnectionClosed)
	assert.ErrorIs(t, conn.Err(), ErrConnectionClosed)
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1")
	assert.Error(t, err)
}
