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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const (
	// KindTextNote is a short text note (NIP-01).
	KindTextNote = 1

	// KindNostrConnect carries encrypted remote-signing requests and responses (NIP-46).
	KindNostrConnect = 24133
)

// Timestamp is a unix time in seconds, as used on the wire.
type Timestamp int64

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now().Unix())
}

// TimestampOf converts t to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.Unix())
}

// Time converts the timestamp back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0)
}

// Event is a NIP-01 event.
type Event struct {
	ID        string    `json:"id"`
	PubKey    string    `json:"pubkey"`
	CreatedAt Timestamp `json:"created_at"`
	Kind      int       `json:"kind"`
	Tags      Tags      `json:"tags"`
	Content   string    `json:"content"`
	Sig       string    `json:"sig"`
}

// Serialize returns the canonical array form hashed to produce the event id:
// [0,pubkey,created_at,kind,tags,content].
func (ev *Event) Serialize() []byte {
	var b bytes.Buffer
	b.WriteString(`[0,"`)
	b.WriteString(ev.PubKey)
	b.WriteString(`",`)
	b.WriteString(strconv.FormatInt(int64(ev.CreatedAt), 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(ev.Kind))
	b.WriteString(",[")
	for i, tag := range ev.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeEscaped(&b, v)
		}
		b.WriteByte(']')
	}
	b.WriteString("],")
	writeEscaped(&b, ev.Content)
	b.WriteByte(']')
	return b.Bytes()
}

// GetID computes the event id from its canonical serialization.
func (ev *Event) GetID() string {
	sum := sha256.Sum256(ev.Serialize())
	return hex.EncodeToString(sum[:])
}

// Sign sets PubKey, ID and Sig using sk.
func (ev *Event) Sign(sk string) error {
	priv, err := ParsePrivateKey(sk)
	if err != nil {
		return err
	}
	ev.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	if ev.Tags == nil {
		ev.Tags = Tags{}
	}

	sum := sha256.Sum256(ev.Serialize())
	sig, err := SignHash(sk, sum[:])
	if err != nil {
		return err
	}

	ev.ID = hex.EncodeToString(sum[:])
	ev.Sig = sig
	return nil
}

// CheckSignature verifies that ID matches the content and that Sig is a valid
// signature of ID by PubKey.
func (ev *Event) CheckSignature() (bool, error) {
	pub, err := ParsePublicKey(ev.PubKey)
	if err != nil {
		return false, err
	}

	sum := sha256.Sum256(ev.Serialize())
	if hex.EncodeToString(sum[:]) != ev.ID {
		return false, nil
	}

	raw, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return false, fmt.Errorf("signature is not hex: %w", err)
	}
	sig, err := schnorr.ParseSignature(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse signature: %w", err)
	}
	return sig.Verify(sum[:], pub), nil
}

// writeEscaped writes s as a JSON string using the escaping rules of NIP-01,
// which differ from encoding/json for HTML characters and some control codes.
func writeEscaped(b *bytes.Buffer, s string) {
	const hexdigits = "0123456789abcdef"
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexdigits[c>>4])
				b.WriteByte(hexdigits[c&0xf])
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
