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
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
)

// EventType names an unsolicited announcement received by a Connect session.
type EventType string

const (
	// EventConnect is emitted when a signer announces an approved pairing.
	EventConnect EventType = "connect"

	// EventDisconnect is emitted when a signer revokes a pairing.
	EventDisconnect EventType = "disconnect"
)

// Event is an announcement from a signer.
type Event struct {
	Type   EventType
	Pubkey string
}

// Config configures a Connect session.
type Config struct {
	// SecretKey is the application's session key (hex). Required.
	SecretKey string

	// Target is the signer public key. Optional: it can be learned from a
	// connect announcement or passed per call to CallTarget.
	Target string

	// Relay carries the traffic. Required.
	Relay relay.Client

	// Cipher defaults to DefaultCipher.
	Cipher Cipher

	// Timeout bounds each request; defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Connect is the application side of the protocol. It sends requests to a
// signer and matches each response to its caller by request id.
type Connect struct {
	secretKey string
	publicKey string
	relay     relay.Client
	cipher    Cipher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	target    string
	sub       relay.Subscription
	closed    bool
	pending   map[string]*pendingRequest
	observers []func(Event)
}

type pendingRequest struct {
	target string
	ch     chan Response
}

// DelegateOptions are the conditions requested from the signer. Zero Since
// means now; zero Until means Since plus nip26.DefaultWindow.
type DelegateOptions struct {
	Kind  *int
	Since time.Time
	Until time.Time
}

// delegateParams is the wire form of DelegateOptions (unix seconds).
type delegateParams struct {
	Kind  *int  `json:"kind,omitempty"`
	Since int64 `json:"since,omitempty"`
	Until int64 `json:"until,omitempty"`
}

// NewConnect creates an idle session. Call Init before issuing requests.
func NewConnect(cfg Config) (*Connect, error) {
	publicKey, err := nostr.GetPublicKey(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	if cfg.Relay == nil {
		return nil, fmt.Errorf("relay cannot be nil")
	}
	if cfg.Target != "" && !nostr.IsValidPublicKey(cfg.Target) {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidKey, cfg.Target)
	}

	c := &Connect{
		secretKey: cfg.SecretKey,
		publicKey: publicKey,
		relay:     cfg.Relay,
		cipher:    cfg.Cipher,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		now:       cfg.Now,
		target:    cfg.Target,
		pending:   make(map[string]*pendingRequest),
	}
	if c.cipher == nil {
		c.cipher = DefaultCipher
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.logger = c.logger.With("role", "connect", "pubkey", publicKey)
	return c, nil
}

// PublicKey returns the session public key.
func (c *Connect) PublicKey() string {
	return c.publicKey
}

// Target returns the current signer public key, or "".
func (c *Connect) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget changes the signer addressed by Call and the typed helpers.
func (c *Connect) SetTarget(pubkey string) error {
	if pubkey != "" && !nostr.IsValidPublicKey(pubkey) {
		return fmt.Errorf("%w: target %q", ErrInvalidKey, pubkey)
	}
	c.mu.Lock()
	c.target = pubkey
	c.mu.Unlock()
	return nil
}

// OnEvent registers an observer for signer announcements. Observers run on
// the relay delivery goroutine and must not block.
func (c *Connect) OnEvent(fn func(Event)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Init subscribes to events addressed to the session key. It is a no-op when
// already listening.
func (c *Connect) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.sub != nil {
		return nil
	}

	since := nostr.TimestampOf(c.now().Add(-ClockSkew))
	sub, err := c.relay.Subscribe(ctx, nostr.Filter{
		Kinds: []int{nostr.KindNostrConnect},
		Tags:  map[string][]string{"p": {c.publicKey}},
		Since: &since,
	}, c.handleEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	c.sub = sub
	c.logger.Info("listening for responses")
	return nil
}

// Close ends the session. Callers still waiting fail with ErrClosed.
func (c *Connect) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	for id, p := range c.pending {
		delete(c.pending, id)
		close(p.ch)
	}
	c.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			return fmt.Errorf("failed to close subscription: %w", err)
		}
	}
	return nil
}

// Call sends method to the current target and returns the raw result.
func (c *Connect) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.CallTarget(ctx, c.Target(), method, params...)
}

// CallTarget sends method to target and waits for the matching response,
// the session timeout or ctx, whichever comes first.
func (c *Connect) CallTarget(ctx context.Context, target, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := c.listening(); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, ErrNoTarget
	}
	if !nostr.IsValidPublicKey(target) {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidKey, target)
	}

	req, err := NewRequest(method, params...)
	if err != nil {
		return nil, err
	}
	ev, err := seal(c.secretKey, target, c.cipher, req, c.now())
	if err != nil {
		return nil, err
	}

	ch := make(chan Response, 1)
	if err := c.register(req.ID, target, ch); err != nil {
		return nil, err
	}

	if err := c.relay.Publish(ctx, ev); err != nil {
		c.remove(req.ID)
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}
	c.logger.Debug("request sent", "id", req.ID, "method", method, "target", target)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		return c.result(method, resp, ok)

	case <-timer.C:
		if !c.remove(req.ID) {
			// Settled concurrently; the response is already buffered.
			resp, ok := <-ch
			return c.result(method, resp, ok)
		}
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, c.timeout)

	case <-ctx.Done():
		if !c.remove(req.ID) {
			resp, ok := <-ch
			return c.result(method, resp, ok)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("context error: %w", ctx.Err())
	}
}

func (c *Connect) result(method string, resp Response, ok bool) (json.RawMessage, error) {
	if !ok {
		return nil, ErrClosed
	}
	if resp.Error != "" {
		return nil, &RemoteError{Method: method, Message: resp.Error}
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, &RemoteError{Method: method, Message: emptyResponse}
	}
	return resp.Result, nil
}

func (c *Connect) listening() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.sub == nil {
		return ErrNotListening
	}
	return nil
}

func (c *Connect) register(id, target string, ch chan Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.sub == nil {
		return ErrNotListening
	}
	if _, exists := c.pending[id]; exists {
		return fmt.Errorf("duplicate request id %s", id)
	}
	c.pending[id] = &pendingRequest{target: target, ch: ch}
	return nil
}

// remove deletes the pending entry and reports whether this call removed it.
func (c *Connect) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

func (c *Connect) handleEvent(ev nostr.Event) {
	env, err := open(c.secretKey, c.cipher, &ev)
	if err != nil {
		c.logger.Debug("dropping inbound event", "event", ev.ID, "error", err)
		return
	}

	if env.isRequest() {
		c.handleAnnouncement(ev.PubKey, env.request())
		return
	}

	resp := env.response()
	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	if ok && p.target == ev.PubKey {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	switch {
	case !ok:
		c.logger.Debug("dropping response for unknown request", "id", resp.ID)
	case p.target != ev.PubKey:
		c.logger.Debug("dropping response from unexpected sender", "id", resp.ID, "sender", ev.PubKey)
	default:
		p.ch <- resp
	}
}

func (c *Connect) handleAnnouncement(sender string, req Request) {
	var e Event
	switch req.Method {
	case MethodConnect:
		e = Event{Type: EventConnect, Pubkey: sender}
		c.mu.Lock()
		if c.target == "" {
			c.target = sender
		}
		c.mu.Unlock()
	case MethodDisconnect:
		e = Event{Type: EventDisconnect, Pubkey: sender}
		c.mu.Lock()
		if c.target == sender {
			c.target = ""
		}
		c.mu.Unlock()
	default:
		c.logger.Debug("ignoring inbound request", "method", req.Method, "sender", sender)
		return
	}

	c.logger.Info("signer announcement", "type", e.Type, "signer", sender)
	c.mu.Lock()
	observers := slices.Clone(c.observers)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(e)
	}
}

// GetPublicKey asks the signer for its public key.
func (c *Connect) GetPublicKey(ctx context.Context) (string, error) {
	raw, err := c.Call(ctx, MethodGetPublicKey)
	if err != nil {
		return "", err
	}
	var pk string
	if err := json.Unmarshal(raw, &pk); err != nil {
		return "", fmt.Errorf("failed to parse %s result: %w", MethodGetPublicKey, err)
	}
	return pk, nil
}

// SignEvent asks the signer to sign ev. PubKey defaults to the target,
// CreatedAt to now. The returned event carries ID and Sig and has been
// verified.
func (c *Connect) SignEvent(ctx context.Context, ev nostr.Event) (nostr.Event, error) {
	target := c.Target()
	if ev.PubKey == "" {
		ev.PubKey = target
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = nostr.TimestampOf(c.now())
	}
	if ev.Tags == nil {
		ev.Tags = nostr.Tags{}
	}
	ev.ID = ev.GetID()
	ev.Sig = ""

	raw, err := c.CallTarget(ctx, target, MethodSignEvent, ev)
	if err != nil {
		return nostr.Event{}, err
	}
	if err := json.Unmarshal(raw, &ev.Sig); err != nil {
		return nostr.Event{}, fmt.Errorf("failed to parse %s result: %w", MethodSignEvent, err)
	}
	if ok, err := ev.CheckSignature(); !ok {
		if err != nil {
			return nostr.Event{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return nostr.Event{}, ErrInvalidSignature
	}
	return ev, nil
}

// Delegate asks the signer to delegate to delegatee. The window is resolved
// locally so the returned delegation can be verified and tagged.
func (c *Connect) Delegate(ctx context.Context, delegatee string, opts DelegateOptions) (*nip26.Delegation, error) {
	if !nostr.IsValidPublicKey(delegatee) {
		return nil, fmt.Errorf("%w: delegatee %q", ErrInvalidKey, delegatee)
	}
	issuer := &nip26.Issuer{Now: c.now, DefaultWindow: nip26.DefaultWindow}
	cond, err := issuer.Resolve(nip26.Conditions{Kind: opts.Kind, Since: opts.Since, Until: opts.Until})
	if err != nil {
		return nil, err
	}

	target := c.Target()
	raw, err := c.CallTarget(ctx, target, MethodDelegate, delegatee, delegateParams{
		Kind:  cond.Kind,
		Since: cond.Since.Unix(),
		Until: cond.Until.Unix(),
	})
	if err != nil {
		return nil, err
	}

	d := nip26.Delegation{Delegator: target, Delegatee: delegatee, Conditions: cond.String()}
	if err := json.Unmarshal(raw, &d.Sig); err != nil {
		return nil, fmt.Errorf("failed to parse %s result: %w", MethodDelegate, err)
	}
	if err := d.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return &d, nil
}

// Describe returns the methods the signer supports.
func (c *Connect) Describe(ctx context.Context) ([]string, error) {
	raw, err := c.Call(ctx, MethodDescribe)
	if err != nil {
		return nil, err
	}
	var methods []string
	if err := json.Unmarshal(raw, &methods); err != nil {
		return nil, fmt.Errorf("failed to parse %s result: %w", MethodDescribe, err)
	}
	return methods, nil
}

// RequestConnect asks the signer to add this session to its connected apps.
// The signer only accepts after its user approves.
func (c *Connect) RequestConnect(ctx context.Context) error {
	_, err := c.Call(ctx, MethodConnect, c.publicKey)
	return err
}

// Disconnect removes this session from the signer's connected apps.
func (c *Connect) Disconnect(ctx context.Context) error {
	_, err := c.Call(ctx, MethodDisconnect)
	return err
}
