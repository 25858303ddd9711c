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

package nip04

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

func keyPair(t *testing.T) (string, string) {
	t.Helper()
	sk, err := nostr.GeneratePrivateKey()
	require.NoError(t, err)
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	return sk, pk
}

func TestSharedSecret_Symmetric(t *testing.T) {
	skA, pkA := keyPair(t)
	skB, pkB := keyPair(t)

	ab, err := SharedSecret(skA, pkB)
	require.NoError(t, err)
	ba, err := SharedSecret(skB, pkA)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Len(t, ab, 32)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	skA, pkA := keyPair(t)
	skB, pkB := keyPair(t)

	for _, msg := range []string{"x", "hello world", strings.Repeat("16 byte block!!!", 4), `{"id":"1","method":"get_public_key","params":[]}`} {
		payload, err := Cipher{}.Encrypt(skA, pkB, msg)
		require.NoError(t, err)
		assert.Contains(t, payload, "?iv=")

		plain, err := Cipher{}.Decrypt(skB, pkA, payload)
		require.NoError(t, err)
		assert.Equal(t, msg, plain)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	skA, _ := keyPair(t)
	_, pkB := keyPair(t)
	skC, _ := keyPair(t)
	_, pkA := keyPair(t)

	payload, err := Encrypt(skA, pkB, "secret message that spans blocks")
	require.NoError(t, err)

	plain, err := Decrypt(skC, pkA, payload)
	if err == nil {
		// A wrong key can occasionally produce valid padding; the text still differs.
		assert.NotEqual(t, "secret message that spans blocks", plain)
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	sk, pk := keyPair(t)

	for _, payload := range []string{"", "no-iv-separator", "!!!?iv=AAAAAAAAAAAAAAAAAAAAAA==", "AAAA?iv=short"} {
		_, err := Decrypt(sk, pk, payload)
		assert.ErrorIs(t, err, ErrMalformedPayload, payload)
	}
}

func TestEncrypt_InvalidKeys(t *testing.T) {
	sk, pk := keyPair(t)

	_, err := Encrypt("bad", pk, "x")
	assert.ErrorIs(t, err, nostr.ErrInvalidPrivateKey)

	_, err = Encrypt(sk, "bad", "x")
	assert.ErrorIs(t, err, nostr.ErrInvalidPublicKey)
}
