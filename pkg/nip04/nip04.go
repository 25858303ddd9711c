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

// Package nip04 implements the NIP-04 payload encryption used by the first
// generation of Nostr Connect: AES-256-CBC keyed by the x coordinate of the
// secp256k1 ECDH point, serialized as "<base64 ciphertext>?iv=<base64 iv>".
package nip04

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// ErrMalformedPayload is returned when a payload is not in "<ct>?iv=<iv>" form
// or its padding is invalid.
var ErrMalformedPayload = errors.New("nip04: malformed payload")

// Cipher implements connect.Cipher with NIP-04.
type Cipher struct{}

// Encrypt encrypts plaintext from sk to the holder of pub.
func (Cipher) Encrypt(sk, pub, plaintext string) (string, error) {
	return Encrypt(sk, pub, plaintext)
}

// Decrypt decrypts payload sent to sk by the holder of pub.
func (Cipher) Decrypt(sk, pub, payload string) (string, error) {
	return Decrypt(sk, pub, payload)
}

// SharedSecret returns the 32-byte x coordinate of sk*pub.
func SharedSecret(sk, pub string) ([]byte, error) {
	priv, err := nostr.ParsePrivateKey(sk)
	if err != nil {
		return nil, err
	}
	point, err := nostr.ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return secp256k1.GenerateSharedSecret(priv, point), nil
}

// Encrypt encrypts plaintext from sk to pub.
func Encrypt(sk, pub, plaintext string) (string, error) {
	key, err := SharedSecret(sk, pub)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return base64.StdEncoding.EncodeToString(ct) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt decrypts a payload produced by Encrypt.
func Decrypt(sk, pub, payload string) (string, error) {
	ctB64, ivB64, ok := strings.Cut(payload, "?iv=")
	if !ok {
		return "", ErrMalformedPayload
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", ErrMalformedPayload
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrMalformedPayload
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrMalformedPayload
	}

	key, err := SharedSecret(sk, pub)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrMalformedPayload
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrMalformedPayload
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrMalformedPayload
		}
	}
	return b[:len(b)-n], nil
}
