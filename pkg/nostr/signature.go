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
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// SignHash produces a hex BIP-340 signature of a 32-byte digest.
func SignHash(sk string, hash []byte) (string, error) {
	priv, err := ParsePrivateKey(sk)
	if err != nil {
		return "", err
	}
	sig, err := schnorr.Sign(priv, hash)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// VerifyHash checks a hex BIP-340 signature of hash against the x-only key pk.
func VerifyHash(pk string, hash []byte, sig string) bool {
	pub, err := ParsePublicKey(pk)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(raw)
	if err != nil {
		return false
	}
	return parsed.Verify(hash, pub)
}
