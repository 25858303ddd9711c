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

package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// ErrPubKeyMismatch is returned when asked to sign an event for another key.
var ErrPubKeyMismatch = errors.New("event pubkey does not match signer key")

// KeySigner is a Handler backed by an in-memory secret key.
type KeySigner struct {
	secretKey string
	publicKey string
	issuer    *nip26.Issuer
}

// NewKeySigner creates a KeySigner for secretKey (64 hex chars).
func NewKeySigner(secretKey string) (*KeySigner, error) {
	publicKey, err := nostr.GetPublicKey(secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &KeySigner{
		secretKey: secretKey,
		publicKey: publicKey,
		issuer:    nip26.NewIssuer(),
	}, nil
}

// SetIssuer replaces the delegation issuer, e.g. to inject a clock.
func (s *KeySigner) SetIssuer(issuer *nip26.Issuer) {
	s.issuer = issuer
}

// PublicKey returns the signer public key without a context.
func (s *KeySigner) PublicKey() string {
	return s.publicKey
}

// GetPublicKey returns the signer public key.
func (s *KeySigner) GetPublicKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error: %w", err)
	}
	return s.publicKey, nil
}

// SignEvent signs ev in place and returns its signature.
func (s *KeySigner) SignEvent(ctx context.Context, ev *nostr.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error: %w", err)
	}
	if ev == nil {
		return "", fmt.Errorf("event cannot be nil")
	}
	if ev.PubKey != "" && ev.PubKey != s.publicKey {
		return "", ErrPubKeyMismatch
	}

	if err := ev.Sign(s.secretKey); err != nil {
		return "", fmt.Errorf("failed to sign event: %w", err)
	}
	return ev.Sig, nil
}

// Delegate issues a delegation from the signer key to delegatee.
func (s *KeySigner) Delegate(ctx context.Context, delegatee string, conditions nip26.Conditions) (*nip26.Delegation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	return s.issuer.Delegate(s.secretKey, delegatee, conditions)
}
