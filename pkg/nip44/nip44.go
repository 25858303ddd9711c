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

package nip44

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip04"
)

const (
	version     = 2
	minPlainLen = 1
	maxPlainLen = 65535
	nonceSize   = 32
	macSize     = 32
)

var (
	// ErrInvalidLength is returned for plaintexts outside 1..65535 bytes.
	ErrInvalidLength = errors.New("nip44: invalid plaintext length")

	// ErrUnsupportedVersion is returned when the payload version byte is not 2.
	ErrUnsupportedVersion = errors.New("nip44: unsupported version")

	// ErrInvalidPayload is returned for truncated, badly padded or corrupt payloads.
	ErrInvalidPayload = errors.New("nip44: invalid payload")

	// ErrInvalidMAC is returned when authentication fails.
	ErrInvalidMAC = errors.New("nip44: invalid mac")
)

// Cipher implements connect.Cipher with NIP-44 v2.
type Cipher struct{}

// Encrypt encrypts plaintext from sk to the holder of pub.
func (Cipher) Encrypt(sk, pub, plaintext string) (string, error) {
	key, err := ConversationKey(sk, pub)
	if err != nil {
		return "", err
	}
	return Encrypt(key, plaintext, nil)
}

// Decrypt decrypts payload sent to sk by the holder of pub.
func (Cipher) Decrypt(sk, pub, payload string) (string, error) {
	key, err := ConversationKey(sk, pub)
	if err != nil {
		return "", err
	}
	return Decrypt(key, payload)
}

// ConversationKey derives the long-term key shared by sk and pub:
// HKDF-Extract(salt="nip44-v2", ikm=ECDH x coordinate).
func ConversationKey(sk, pub string) ([]byte, error) {
	shared, err := nip04.SharedSecret(sk, pub)
	if err != nil {
		return nil, err
	}
	return hkdf.Extract(sha256.New, shared, []byte("nip44-v2")), nil
}

// Encrypt encrypts plaintext under a conversation key. A nil nonce draws 32
// random bytes.
func Encrypt(conversationKey []byte, plaintext string, nonce []byte) (string, error) {
	if nonce == nil {
		nonce = make([]byte, nonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return "", fmt.Errorf("failed to generate nonce: %w", err)
		}
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("nip44: nonce must be %d bytes", nonceSize)
	}

	chachaKey, chachaNonce, hmacKey, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}

	padded, err := pad(plaintext)
	if err != nil {
		return "", err
	}

	stream, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	ct := make([]byte, len(padded))
	stream.XORKeyStream(ct, padded)

	out := make([]byte, 0, 1+nonceSize+len(ct)+macSize)
	out = append(out, version)
	out = append(out, nonce...)
	out = append(out, ct...)
	out = append(out, mac(hmacKey, nonce, ct)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(conversationKey []byte, payload string) (string, error) {
	if payload == "" || payload[0] == '#' {
		return "", ErrUnsupportedVersion
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidPayload
	}
	// version + nonce + smallest padded block (2 + 32) + mac
	if len(raw) < 1+nonceSize+34+macSize {
		return "", ErrInvalidPayload
	}
	if raw[0] != version {
		return "", ErrUnsupportedVersion
	}

	nonce := raw[1 : 1+nonceSize]
	ct := raw[1+nonceSize : len(raw)-macSize]
	tag := raw[len(raw)-macSize:]

	chachaKey, chachaNonce, hmacKey, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}
	if !hmac.Equal(tag, mac(hmacKey, nonce, ct)) {
		return "", ErrInvalidMAC
	}

	stream, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := make([]byte, len(ct))
	stream.XORKeyStream(padded, ct)

	return unpad(padded)
}

func messageKeys(conversationKey, nonce []byte) (chachaKey, chachaNonce, hmacKey []byte, err error) {
	if len(conversationKey) != 32 {
		return nil, nil, nil, fmt.Errorf("nip44: conversation key must be 32 bytes")
	}
	keys := make([]byte, 76)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, conversationKey, nonce), keys); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to expand message keys: %w", err)
	}
	return keys[0:32], keys[32:44], keys[44:76], nil
}

func mac(key, nonce, ct []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(nonce)
	h.Write(ct)
	return h.Sum(nil)
}

// CalcPaddedLen returns the padded size of an n-byte plaintext.
func CalcPaddedLen(n int) int {
	if n <= 32 {
		return 32
	}
	nextPower := 1 << bits.Len(uint(n-1))
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((n-1)/chunk + 1)
}

func pad(plaintext string) ([]byte, error) {
	n := len(plaintext)
	if n < minPlainLen || n > maxPlainLen {
		return nil, ErrInvalidLength
	}
	out := make([]byte, 2+CalcPaddedLen(n))
	binary.BigEndian.PutUint16(out, uint16(n))
	copy(out[2:], plaintext)
	return out, nil
}

func unpad(padded []byte) (string, error) {
	n := int(binary.BigEndian.Uint16(padded))
	if n < minPlainLen || 2+n > len(padded) || len(padded) != 2+CalcPaddedLen(n) {
		return "", ErrInvalidPayload
	}
	return string(padded[2 : 2+n]), nil
}
