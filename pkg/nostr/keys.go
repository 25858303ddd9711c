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

package nostr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrInvalidPrivateKey is returned when a secret key is not 32 bytes of hex
	// or lies outside the curve order.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrInvalidPublicKey is returned when a public key is not a 32-byte x-only
	// secp256k1 point encoded as lowercase hex.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// GeneratePrivateKey returns a fresh secp256k1 secret key as 64 hex chars.
func GeneratePrivateKey() (string, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate private key: %w", err)
	}
	return hex.EncodeToString(priv.Serialize()), nil
}

// GetPublicKey derives the BIP-340 x-only public key for sk.
func GetPublicKey(sk string) (string, error) {
	priv, err := ParsePrivateKey(sk)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

// ParsePrivateKey decodes a hex secret key and rejects zero or overflowing scalars.
func ParsePrivateKey(sk string) (*secp256k1.PrivateKey, error) {
	b, err := hex.DecodeString(sk)
	if err != nil || len(b) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}

// ParsePublicKey decodes an x-only public key into a curve point with even Y.
func ParsePublicKey(pk string) (*secp256k1.PublicKey, error) {
	if len(pk) != 64 || strings.ToLower(pk) != pk {
		return nil, ErrInvalidPublicKey
	}
	b, err := hex.DecodeString(pk)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	pub, err := schnorr.ParsePubKey(b)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}

// IsValidPublicKey reports whether pk is a well-formed x-only public key.
func IsValidPublicKey(pk string) bool {
	_, err := ParsePublicKey(pk)
	return err == nil
}
