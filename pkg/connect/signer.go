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
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
	"github.com/sage-x-project/nostr-connect-go/pkg/signer"
)

// SupportedMethods is the describe result of a Signer.
var SupportedMethods = []string{
	MethodConnect,
	MethodDisconnect,
	MethodDescribe,
	MethodGetPublicKey,
	MethodSignEvent,
	MethodDelegate,
}

// Notification is passed to approvers before a sensitive operation.
type Notification struct {
	Sender string
	Method string
	Params []json.RawMessage
}

// Approver decides whether a sensitive request may proceed. It may block,
// e.g. on a user prompt, until ctx is done.
type Approver func(ctx context.Context, n Notification) bool

// AppChange reports a connected-app set change made by a connect or
// disconnect request.
type AppChange struct {
	App       string
	Connected bool
}

// SignerConfig configures a Signer.
type SignerConfig struct {
	// SecretKey is the signing key (hex). Required.
	SecretKey string

	// Relay carries the traffic. Required.
	Relay relay.Client

	// Handler performs key operations; defaults to a signer.KeySigner over SecretKey.
	Handler signer.Handler

	// Cipher defaults to DefaultCipher.
	Cipher Cipher

	// Apps seeds the connected-app set.
	Apps []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Signer is the key-holding side of the protocol. It answers requests from
// connected apps and turns every outcome into a response envelope.
type Signer struct {
	secretKey string
	publicKey string
	relay     relay.Client
	handler   signer.Handler
	cipher    Cipher
	logger    *slog.Logger
	now       func() time.Time

	appsMu sync.RWMutex
	apps   map[string]struct{}

	mu        sync.Mutex
	approvers []Approver
	onChange  []func(AppChange)
	sub       relay.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSigner creates an idle Signer. Call Listen to start serving.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	publicKey, err := nostr.GetPublicKey(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	if cfg.Relay == nil {
		return nil, fmt.Errorf("relay cannot be nil")
	}

	s := &Signer{
		secretKey: cfg.SecretKey,
		publicKey: publicKey,
		relay:     cfg.Relay,
		handler:   cfg.Handler,
		cipher:    cfg.Cipher,
		logger:    cfg.Logger,
		now:       cfg.Now,
		apps:      make(map[string]struct{}),
	}
	if s.handler == nil {
		ks, err := signer.NewKeySigner(cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		s.handler = ks
	}
	if s.cipher == nil {
		s.cipher = DefaultCipher
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("role", "signer", "pubkey", publicKey)

	for _, app := range cfg.Apps {
		if !nostr.IsValidPublicKey(app) {
			return nil, fmt.Errorf("%w: app %q", ErrInvalidKey, app)
		}
		s.apps[app] = struct{}{}
	}
	return s, nil
}

// PublicKey returns the signer public key.
func (s *Signer) PublicKey() string {
	return s.publicKey
}

// AddConnectedApp authorizes pubkey. Idempotent.
func (s *Signer) AddConnectedApp(pubkey string) {
	s.appsMu.Lock()
	s.apps[pubkey] = struct{}{}
	s.appsMu.Unlock()
}

// RemoveConnectedApp revokes pubkey. Idempotent.
func (s *Signer) RemoveConnectedApp(pubkey string) {
	s.appsMu.Lock()
	delete(s.apps, pubkey)
	s.appsMu.Unlock()
}

// IsConnected reports whether pubkey is authorized.
func (s *Signer) IsConnected(pubkey string) bool {
	s.appsMu.RLock()
	defer s.appsMu.RUnlock()
	_, ok := s.apps[pubkey]
	return ok
}

// ConnectedApps returns the authorized keys in sorted order.
func (s *Signer) ConnectedApps() []string {
	s.appsMu.RLock()
	apps := make([]string, 0, len(s.apps))
	for app := range s.apps {
		apps = append(apps, app)
	}
	s.appsMu.RUnlock()
	slices.Sort(apps)
	return apps
}

// SetConnectedApps replaces the connected-app set.
func (s *Signer) SetConnectedApps(apps []string) {
	next := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		next[app] = struct{}{}
	}
	s.appsMu.Lock()
	s.apps = next
	s.appsMu.Unlock()
}

// OnRequest registers an approver. Every approver must agree for a sensitive
// request to proceed.
func (s *Signer) OnRequest(a Approver) {
	s.mu.Lock()
	s.approvers = append(s.approvers, a)
	s.mu.Unlock()
}

// OnAppChange registers an observer for connected-app changes requested over
// the protocol. Observers run before the request is acknowledged.
func (s *Signer) OnAppChange(fn func(AppChange)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Signer) appChanged(app string, connected bool) {
	s.mu.Lock()
	observers := slices.Clone(s.onChange)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(AppChange{App: app, Connected: connected})
	}
}

// Listen subscribes to requests addressed to the signer key. Requests are
// served until Close.
func (s *Signer) Listen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	since := nostr.TimestampOf(s.now().Add(-ClockSkew))
	sub, err := s.relay.Subscribe(ctx, nostr.Filter{
		Kinds: []int{nostr.KindNostrConnect},
		Tags:  map[string][]string{"p": {s.publicKey}},
		Since: &since,
	}, s.handleEvent)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	s.sub = sub
	s.logger.Info("listening for requests")
	return nil
}

// Close stops listening, cancels in-flight approvals and waits for them.
func (s *Signer) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Close()
	}
	s.wg.Wait()
	return err
}

// Approve authorizes the application described by uri and announces the
// pairing to it.
func (s *Signer) Approve(ctx context.Context, uri ConnectURI) error {
	if err := uri.Validate(); err != nil {
		return err
	}
	s.AddConnectedApp(uri.Target)
	return s.announce(ctx, uri.Target, MethodConnect, s.publicKey)
}

// Reject revokes the application described by uri and tells it so.
func (s *Signer) Reject(ctx context.Context, uri ConnectURI) error {
	if err := uri.Validate(); err != nil {
		return err
	}
	s.RemoveConnectedApp(uri.Target)
	return s.announce(ctx, uri.Target, MethodDisconnect)
}

func (s *Signer) announce(ctx context.Context, target, method string, params ...any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	req, err := NewRequest(method, params...)
	if err != nil {
		return err
	}
	ev, err := seal(s.secretKey, target, s.cipher, req, s.now())
	if err != nil {
		return err
	}
	if err := s.relay.Publish(ctx, ev); err != nil {
		return fmt.Errorf("failed to publish %s: %w", method, err)
	}
	return nil
}

func (s *Signer) handleEvent(ev nostr.Event) {
	s.mu.Lock()
	ctx := s.ctx
	listening := s.sub != nil
	if listening {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	if !listening {
		return
	}

	go func() {
		defer s.wg.Done()
		s.process(ctx, ev)
	}()
}

func (s *Signer) process(ctx context.Context, ev nostr.Event) {
	env, err := open(s.secretKey, s.cipher, &ev)
	if err != nil {
		s.logger.Debug("dropping inbound event", "event", ev.ID, "error", err)
		return
	}
	if !env.isRequest() {
		s.logger.Debug("dropping non-request envelope", "id", env.ID, "sender", ev.PubKey)
		return
	}

	req := env.request()
	resp := s.serve(ctx, ev.PubKey, req)

	out, err := seal(s.secretKey, ev.PubKey, s.cipher, resp, s.now())
	if err != nil {
		s.logger.Warn("failed to seal response", "id", req.ID, "error", err)
		return
	}
	if err := s.relay.Publish(ctx, out); err != nil {
		s.logger.Warn("failed to publish response", "id", req.ID, "method", req.Method, "error", err)
	}
}

// serve runs one request and always yields a response.
func (s *Signer) serve(ctx context.Context, sender string, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request handler panicked", "id", req.ID, "method", req.Method, "panic", r)
			resp = Response{ID: req.ID, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	result, err := s.dispatch(ctx, sender, req)
	if err == nil {
		resp, err = NewResponse(req.ID, result)
	}
	if err != nil {
		s.logger.Info("request failed", "id", req.ID, "method", req.Method, "sender", sender, "error", err)
		return Response{ID: req.ID, Error: wireMessage(err)}
	}
	s.logger.Debug("request served", "id", req.ID, "method", req.Method, "sender", sender)
	return resp
}

func (s *Signer) dispatch(ctx context.Context, sender string, req Request) (any, error) {
	if req.Method != MethodConnect && !s.IsConnected(sender) {
		return nil, ErrUnauthorized
	}

	n := Notification{Sender: sender, Method: req.Method, Params: req.Params}
	switch req.Method {
	case MethodConnect:
		if s.IsConnected(sender) {
			return "ack", nil
		}
		// Pairing needs explicit consent: no approver means no pairing.
		if !s.approve(ctx, n, true) {
			return nil, ErrDenied
		}
		s.AddConnectedApp(sender)
		s.logger.Info("app connected", "app", sender)
		s.appChanged(sender, true)
		return "ack", nil

	case MethodDisconnect:
		s.RemoveConnectedApp(sender)
		s.logger.Info("app disconnected", "app", sender)
		s.appChanged(sender, false)
		return "ack", nil

	case MethodDescribe:
		return SupportedMethods, nil

	case MethodGetPublicKey:
		return s.handler.GetPublicKey(ctx)

	case MethodSignEvent:
		var ev nostr.Event
		if err := param(req.Params, 0, &ev); err != nil {
			return nil, err
		}
		if !s.approve(ctx, n, false) {
			return nil, ErrDenied
		}
		return s.handler.SignEvent(ctx, &ev)

	case MethodDelegate:
		var delegatee string
		var p delegateParams
		if err := param(req.Params, 0, &delegatee); err != nil {
			return nil, err
		}
		if len(req.Params) > 1 {
			if err := param(req.Params, 1, &p); err != nil {
				return nil, err
			}
		}
		if !s.approve(ctx, n, false) {
			return nil, ErrDenied
		}
		cond := nip26.Conditions{Kind: p.Kind}
		if p.Since > 0 {
			cond.Since = time.Unix(p.Since, 0)
		}
		if p.Until > 0 {
			cond.Until = time.Unix(p.Until, 0)
		}
		d, err := s.handler.Delegate(ctx, delegatee, cond)
		if err != nil {
			return nil, err
		}
		return d.Sig, nil

	default:
		return nil, fmt.Errorf("method not supported: %s", req.Method)
	}
}

// approve asks every approver. With none registered the request proceeds
// unless required is set.
func (s *Signer) approve(ctx context.Context, n Notification, required bool) bool {
	s.mu.Lock()
	approvers := slices.Clone(s.approvers)
	s.mu.Unlock()

	if len(approvers) == 0 {
		return !required
	}
	for _, a := range approvers {
		if !a(ctx, n) {
			return false
		}
	}
	return true
}

func param(params []json.RawMessage, i int, v any) error {
	if i >= len(params) {
		return fmt.Errorf("missing param %d", i)
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return fmt.Errorf("invalid param %d: %w", i, err)
	}
	return nil
}
