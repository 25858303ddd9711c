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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip04"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// Method names understood by both roles.
const (
	MethodConnect      = "connect"
	MethodDisconnect   = "disconnect"
	MethodDescribe     = "describe"
	MethodGetPublicKey = "get_public_key"
	MethodSignEvent    = "sign_event"
	MethodDelegate     = "delegate"
)

// Cipher encrypts envelope payloads between two keys.
type Cipher interface {
	Encrypt(sk, pub, plaintext string) (string, error)
	Decrypt(sk, pub, payload string) (string, error)
}

// DefaultCipher is NIP-04, which the first generation of signers speaks.
var DefaultCipher Cipher = nip04.Cipher{}

// Request is a method call: {"id","method","params":[...]}.
type Request struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// NewRequest builds a request with a fresh id, encoding each param as JSON.
func NewRequest(method string, params ...any) (Request, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return Request{}, fmt.Errorf("failed to marshal param %d: %w", i, err)
		}
		raw = append(raw, b)
	}
	return Request{ID: uuid.NewString(), Method: method, Params: raw}, nil
}

// Response answers the request with the same id. Exactly one of Result and
// Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewResponse builds a successful response carrying result.
func NewResponse(id string, result any) (Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return Response{ID: id, Result: b}, nil
}

// envelope is the union of both shapes, used to classify inbound payloads.
type envelope struct {
	ID     string            `json:"id"`
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func (e *envelope) isRequest() bool {
	return e.Method != ""
}

func (e *envelope) request() Request {
	return Request{ID: e.ID, Method: e.Method, Params: e.Params}
}

func (e *envelope) response() Response {
	return Response{ID: e.ID, Result: e.Result, Error: e.Error}
}

var errNotEnvelope = errors.New("payload is not a connect envelope")

// seal encrypts payload for recipient and wraps it in a signed kind-24133 event.
func seal(sk, recipient string, cipher Cipher, payload any, now time.Time) (nostr.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	content, err := cipher.Encrypt(sk, recipient, string(data))
	if err != nil {
		return nostr.Event{}, fmt.Errorf("failed to encrypt envelope: %w", err)
	}

	ev := nostr.Event{
		Kind:      nostr.KindNostrConnect,
		CreatedAt: nostr.TimestampOf(now),
		Tags:      nostr.Tags{{"p", recipient}},
		Content:   content,
	}
	if err := ev.Sign(sk); err != nil {
		return nostr.Event{}, fmt.Errorf("failed to sign event: %w", err)
	}
	return ev, nil
}

// open authenticates and decrypts a kind-24133 event addressed to sk.
func open(sk string, cipher Cipher, ev *nostr.Event) (*envelope, error) {
	if ev.Kind != nostr.KindNostrConnect {
		return nil, errNotEnvelope
	}
	if ok, err := ev.CheckSignature(); !ok {
		if err == nil {
			err = errors.New("signature mismatch")
		}
		return nil, fmt.Errorf("invalid event signature: %w", err)
	}

	plaintext, err := cipher.Decrypt(sk, ev.PubKey, ev.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt envelope: %w", err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(plaintext), &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.ID == "" {
		return nil, errNotEnvelope
	}
	return &env, nil
}
