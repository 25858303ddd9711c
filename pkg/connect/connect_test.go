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

package connect

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
)

// fakeRelay records published events and lets the test deliver events to
// subscribers by hand, in any order.
type fakeRelay struct {
	mu         sync.Mutex
	handlers   map[int]relay.Handler
	nextID     int
	published  chan nostr.Event
	publishErr error
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{handlers: make(map[int]relay.Handler), published: make(chan nostr.Event, 32)}
}

func (f *fakeRelay) Publish(ctx context.Context, ev nostr.Event) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published <- ev
	return nil
}

func (f *fakeRelay) Subscribe(ctx context.Context, filter nostr.Filter, handler relay.Handler) (relay.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.handlers[f.nextID] = handler
	return &fakeSubscription{relay: f, id: f.nextID}, nil
}

func (f *fakeRelay) deliver(ev nostr.Event) {
	f.mu.Lock()
	handlers := make([]relay.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeRelay) next(t *testing.T) nostr.Event {
	t.Helper()
	select {
	case ev := <-f.published:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published event")
		return nostr.Event{}
	}
}

type fakeSubscription struct {
	relay *fakeRelay
	id    int
}

func (s *fakeSubscription) ID() string {
	return "fake"
}

func (s *fakeSubscription) Close() error {
	s.relay.mu.Lock()
	delete(s.relay.handlers, s.id)
	s.relay.mu.Unlock()
	return nil
}

type identity struct {
	sk string
	pk string
}

func newIdentity(t *testing.T) identity {
	t.Helper()
	sk, err := nostr.GeneratePrivateKey()
	require.NoError(t, err)
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	return identity{sk: sk, pk: pk}
}

// readRequest decrypts a request published by the app as the signer would.
func readRequest(t *testing.T, signer identity, ev nostr.Event) Request {
	t.Helper()
	env, err := open(signer.sk, DefaultCipher, &ev)
	require.NoError(t, err)
	require.True(t, env.isRequest())
	return env.request()
}

// reply builds the signer's encrypted response event.
func reply(t *testing.T, signer identity, app string, resp Response) nostr.Event {
	t.Helper()
	ev, err := seal(signer.sk, app, DefaultCipher, resp, time.Now())
	require.NoError(t, err)
	return ev
}

func result(t *testing.T, id string, v any) Response {
	t.Helper()
	resp, err := NewResponse(id, v)
	require.NoError(t, err)
	return resp
}

func newTestConnect(t *testing.T, r relay.Client, target string, timeout time.Duration) (*Connect, identity) {
	t.Helper()
	app := newIdentity(t)
	c, err := NewConnect(Config{SecretKey: app.sk, Target: target, Relay: r, Timeout: timeout})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, app
}

func TestNewConnect_Validation(t *testing.T) {
	app := newIdentity(t)

	_, err := NewConnect(Config{SecretKey: "bad", Relay: newFakeRelay()})
	assert.Error(t, err)

	_, err = NewConnect(Config{SecretKey: app.sk})
	assert.Error(t, err)

	_, err = NewConnect(Config{SecretKey: app.sk, Relay: newFakeRelay(), Target: "nope"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestConnect_NotListening(t *testing.T) {
	signer := newIdentity(t)

	t.Run("with target", func(t *testing.T) {
		c, _ := newTestConnect(t, newFakeRelay(), signer.pk, time.Second)

		_, err := c.GetPublicKey(context.Background())

		assert.ErrorIs(t, err, ErrNotListening)
	})

	t.Run("without target", func(t *testing.T) {
		r := newFakeRelay()
		c, _ := newTestConnect(t, r, "", time.Second)

		_, err := c.GetPublicKey(context.Background())

		assert.ErrorIs(t, err, ErrNotListening)
		assert.NotErrorIs(t, err, ErrNoTarget)
		assert.Empty(t, r.published)
	})

	t.Run("explicit target", func(t *testing.T) {
		c, _ := newTestConnect(t, newFakeRelay(), "", time.Second)

		_, err := c.CallTarget(context.Background(), signer.pk, MethodDescribe)

		assert.ErrorIs(t, err, ErrNotListening)
	})
}

func TestConnect_NoTarget(t *testing.T) {
	c, _ := newTestConnect(t, newFakeRelay(), "", time.Second)
	require.NoError(t, c.Init(context.Background()))

	_, err := c.GetPublicKey(context.Background())

	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestConnect_GetPublicKey(t *testing.T) {
	// Setup
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	require.NoError(t, c.Init(context.Background()))

	// Execute
	type outcome struct {
		pk  string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		pk, err := c.GetPublicKey(context.Background())
		done <- outcome{pk, err}
	}()

	ev := r.next(t)
	assert.Equal(t, nostr.KindNostrConnect, ev.Kind)
	assert.True(t, ev.Tags.ContainsValue("p", signer.pk))
	assert.Equal(t, app.pk, ev.PubKey)
	req := readRequest(t, signer, ev)
	assert.Equal(t, MethodGetPublicKey, req.Method)
	r.deliver(reply(t, signer, app.pk, result(t, req.ID, signer.pk)))

	// Assert
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, signer.pk, got.pk)
}

func TestConnect_ConcurrentRequestsResolvedInReverseOrder(t *testing.T) {
	// Setup
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	require.NoError(t, c.Init(context.Background()))

	type outcome struct {
		tag string
		raw json.RawMessage
		err error
	}
	done := make(chan outcome, 2)
	for _, tag := range []string{"first", "second"} {
		go func() {
			raw, err := c.Call(context.Background(), "echo", tag)
			done <- outcome{tag, raw, err}
		}()
	}

	// Each response echoes the param of its own request
	reqA := readRequest(t, signer, r.next(t))
	reqB := readRequest(t, signer, r.next(t))
	require.NotEqual(t, reqA.ID, reqB.ID)

	// Execute: answer in reverse order, preceded by noise
	r.deliver(reply(t, signer, app.pk, result(t, "unknown-id", "noise")))
	r.deliver(nostr.Event{Kind: nostr.KindNostrConnect, Content: "garbage"})
	r.deliver(reply(t, signer, app.pk, Response{ID: reqB.ID, Result: reqB.Params[0]}))
	r.deliver(reply(t, signer, app.pk, Response{ID: reqA.ID, Result: reqA.Params[0]}))

	// Assert
	for i := 0; i < 2; i++ {
		got := <-done
		require.NoError(t, got.err)
		var echoed string
		require.NoError(t, json.Unmarshal(got.raw, &echoed))
		assert.Equal(t, got.tag, echoed)
	}
}

func TestConnect_TimeoutAndLateResponse(t *testing.T) {
	// Setup
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 50*time.Millisecond)
	require.NoError(t, c.Init(context.Background()))

	// Execute
	_, err := c.GetPublicKey(context.Background())

	// Assert
	assert.ErrorIs(t, err, ErrTimeout)
	req := readRequest(t, signer, r.next(t))

	// A late response is discarded without disturbing later requests
	assert.NotPanics(t, func() {
		r.deliver(reply(t, signer, app.pk, result(t, req.ID, signer.pk)))
	})
	c.mu.Lock()
	assert.Empty(t, c.pending)
	c.mu.Unlock()
}

func TestConnect_ContextDeadline(t *testing.T) {
	signer := newIdentity(t)
	c, _ := newTestConnect(t, newFakeRelay(), signer.pk, time.Minute)
	require.NoError(t, c.Init(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.GetPublicKey(ctx)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnect_RemoteErrors(t *testing.T) {
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	require.NoError(t, c.Init(context.Background()))

	for _, msg := range []string{"unauthorized", "denied", "boom"} {
		errc := make(chan error, 1)
		go func() {
			_, err := c.GetPublicKey(context.Background())
			errc <- err
		}()
		req := readRequest(t, signer, r.next(t))
		r.deliver(reply(t, signer, app.pk, Response{ID: req.ID, Error: msg}))

		err := <-errc
		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, msg, remote.Message)
		assert.Equal(t, MethodGetPublicKey, remote.Method)
		assert.Equal(t, msg == "unauthorized", errors.Is(err, ErrUnauthorized))
		assert.Equal(t, msg == "denied", errors.Is(err, ErrDenied))
	}
}

func TestConnect_ResponseFromWrongSenderIgnored(t *testing.T) {
	r := newFakeRelay()
	signer := newIdentity(t)
	impostor := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 200*time.Millisecond)
	require.NoError(t, c.Init(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.GetPublicKey(context.Background())
		errc <- err
	}()
	req := readRequest(t, signer, r.next(t))
	r.deliver(reply(t, impostor, app.pk, result(t, req.ID, impostor.pk)))

	assert.ErrorIs(t, <-errc, ErrTimeout)
}

func TestConnect_PublishFailure(t *testing.T) {
	r := newFakeRelay()
	r.publishErr = errors.New("relay down")
	signer := newIdentity(t)
	c, _ := newTestConnect(t, r, signer.pk, time.Second)
	require.NoError(t, c.Init(context.Background()))

	_, err := c.GetPublicKey(context.Background())

	assert.ErrorIs(t, err, r.publishErr)
	c.mu.Lock()
	assert.Empty(t, c.pending)
	c.mu.Unlock()
}

func TestConnect_CloseFailsPending(t *testing.T) {
	r := newFakeRelay()
	signer := newIdentity(t)
	c, _ := newTestConnect(t, r, signer.pk, time.Minute)
	require.NoError(t, c.Init(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.GetPublicKey(context.Background())
		errc <- err
	}()
	r.next(t)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, <-errc, ErrClosed)
	_, err := c.GetPublicKey(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Init(context.Background()), ErrClosed)
}

func TestConnect_SignEvent(t *testing.T) {
	// Setup
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	require.NoError(t, c.Init(context.Background()))

	type outcome struct {
		ev  nostr.Event
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ev, err := c.SignEvent(context.Background(), nostr.Event{Kind: nostr.KindTextNote, Content: "Testing Nostr Connect"})
		done <- outcome{ev, err}
	}()

	// Execute: sign as the remote signer would
	req := readRequest(t, signer, r.next(t))
	require.Equal(t, MethodSignEvent, req.Method)
	var unsigned nostr.Event
	require.NoError(t, json.Unmarshal(req.Params[0], &unsigned))
	assert.Equal(t, signer.pk, unsigned.PubKey)
	assert.NotZero(t, unsigned.CreatedAt)
	require.NoError(t, unsigned.Sign(signer.sk))
	r.deliver(reply(t, signer, app.pk, result(t, req.ID, unsigned.Sig)))

	// Assert
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, unsigned.ID, got.ev.ID)
	ok, err := got.ev.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnect_SignEvent_BadSignature(t *testing.T) {
	r := newFakeRelay()
	signer := newIdentity(t)
	other := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	require.NoError(t, c.Init(context.Background()))

	errc := make(chan error, 1)
	go func() {
		_, err := c.SignEvent(context.Background(), nostr.Event{Kind: nostr.KindTextNote})
		errc <- err
	}()
	req := readRequest(t, signer, r.next(t))
	forged := nostr.Event{Kind: nostr.KindTextNote, CreatedAt: nostr.Now()}
	require.NoError(t, forged.Sign(other.sk))
	r.deliver(reply(t, signer, app.pk, result(t, req.ID, forged.Sig)))

	assert.ErrorIs(t, <-errc, ErrInvalidSignature)
}

func TestConnect_Delegate(t *testing.T) {
	// Setup
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }
	require.NoError(t, c.Init(context.Background()))

	type outcome struct {
		d   *nip26.Delegation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		d, err := c.Delegate(context.Background(), app.pk, DelegateOptions{Kind: nip26.Kind(1), Until: now.Add(FiveMinutes)})
		done <- outcome{d, err}
	}()

	// Execute
	req := readRequest(t, signer, r.next(t))
	require.Equal(t, MethodDelegate, req.Method)
	var delegatee string
	var p delegateParams
	require.NoError(t, json.Unmarshal(req.Params[0], &delegatee))
	require.NoError(t, json.Unmarshal(req.Params[1], &p))
	assert.Equal(t, app.pk, delegatee)
	assert.Equal(t, int64(1700000000), p.Since)
	assert.Equal(t, int64(1700000300), p.Until)

	issuer := &nip26.Issuer{Now: func() time.Time { return now }}
	d, err := issuer.Delegate(signer.sk, delegatee, nip26.Conditions{Kind: p.Kind, Since: time.Unix(p.Since, 0), Until: time.Unix(p.Until, 0)})
	require.NoError(t, err)
	r.deliver(reply(t, signer, app.pk, result(t, req.ID, d.Sig)))

	// Assert
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, signer.pk, got.d.Delegator)
	assert.Equal(t, "kind=1&created_at>1700000000&created_at<1700000300", got.d.Conditions)
	assert.NoError(t, got.d.Verify())
}

func TestConnect_Delegate_InvalidWindowIsLocal(t *testing.T) {
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, time.Second)
	require.NoError(t, c.Init(context.Background()))
	now := time.Now()

	_, err := c.Delegate(context.Background(), app.pk, DelegateOptions{Since: now, Until: now.Add(-time.Minute)})

	assert.ErrorIs(t, err, nip26.ErrInvalidWindow)
	assert.Empty(t, r.published, "nothing is sent for an invalid window")
}

func TestConnect_ConnectAnnouncementAdoptsTarget(t *testing.T) {
	// Setup: no preset target
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, "", time.Second)
	events := make(chan Event, 2)
	c.OnEvent(func(e Event) { events <- e })
	require.NoError(t, c.Init(context.Background()))

	// Execute
	req, err := NewRequest(MethodConnect, signer.pk)
	require.NoError(t, err)
	ev, err := seal(signer.sk, app.pk, DefaultCipher, req, time.Now())
	require.NoError(t, err)
	r.deliver(ev)

	// Assert
	assert.Equal(t, Event{Type: EventConnect, Pubkey: signer.pk}, <-events)
	assert.Equal(t, signer.pk, c.Target())

	req, err = NewRequest(MethodDisconnect)
	require.NoError(t, err)
	ev, err = seal(signer.sk, app.pk, DefaultCipher, req, time.Now())
	require.NoError(t, err)
	r.deliver(ev)

	assert.Equal(t, Event{Type: EventDisconnect, Pubkey: signer.pk}, <-events)
	assert.Empty(t, c.Target())
}

func TestConnect_SetTarget(t *testing.T) {
	c, _ := newTestConnect(t, newFakeRelay(), "", time.Second)
	signer := newIdentity(t)

	require.NoError(t, c.SetTarget(signer.pk))
	assert.Equal(t, signer.pk, c.Target())
	assert.ErrorIs(t, c.SetTarget("bad"), ErrInvalidKey)
}

func TestConnect_EmptyResponseRejected(t *testing.T) {
	r := newFakeRelay()
	signer := newIdentity(t)
	c, app := newTestConnect(t, r, signer.pk, 2*time.Second)
	require.NoError(t, c.Init(context.Background()))

	cases := map[string]func(id string) Response{
		"no result or error": func(id string) Response { return Response{ID: id} },
		"null result":        func(id string) Response { return Response{ID: id, Result: json.RawMessage("null")} },
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			type outcome struct {
				pk  string
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				pk, err := c.GetPublicKey(context.Background())
				done <- outcome{pk, err}
			}()
			req := readRequest(t, signer, r.next(t))
			r.deliver(reply(t, signer, app.pk, build(req.ID)))

			got := <-done
			var remote *RemoteError
			require.ErrorAs(t, got.err, &remote)
			assert.Equal(t, emptyResponse, remote.Message)
			assert.Empty(t, got.pk)
		})
	}
}
