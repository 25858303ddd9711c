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
	"fmt"
	"net/url"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// Scheme is the pairing URI scheme.
const Scheme = "nostrconnect"

// Metadata describes the application asking to be paired.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Icons       []string `json:"icons,omitzero"`
}

// ConnectURI is a pairing descriptor:
//
//	nostrconnect://<target>?relay=<relay>&metadata=<json>
//
// A nil Icons list is omitted from the metadata; an empty one is kept as [].
type ConnectURI struct {
	Target   string
	Relay    string
	Metadata Metadata
}

// String encodes the descriptor. Query values are percent-encoded.
func (u ConnectURI) String() string {
	meta, err := json.Marshal(u.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	q := url.Values{}
	q.Set("relay", u.Relay)
	q.Set("metadata", string(meta))
	return Scheme + "://" + u.Target + "?" + q.Encode()
}

// Validate checks the target key and relay address.
func (u ConnectURI) Validate() error {
	if u.Target == "" {
		return fmt.Errorf("%w: missing target", ErrMalformedURI)
	}
	if !nostr.IsValidPublicKey(u.Target) {
		return fmt.Errorf("%w: target %q", ErrInvalidKey, u.Target)
	}
	return validateRelay(u.Relay)
}

// ParseConnectURI decodes s. It fails with ErrMalformedURI when the scheme,
// target or relay is missing or unparsable and with ErrInvalidKey when the
// target is not a valid public key.
func ParseConnectURI(s string) (ConnectURI, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return ConnectURI{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	if parsed.Scheme != Scheme {
		return ConnectURI{}, fmt.Errorf("%w: scheme %q", ErrMalformedURI, parsed.Scheme)
	}

	// nostrconnect://<key> puts the key in the host, nostrconnect:<key> in Opaque
	target := parsed.Host
	if target == "" {
		target = parsed.Opaque
	}

	q := parsed.Query()
	u := ConnectURI{Target: target, Relay: q.Get("relay")}
	if err := u.Validate(); err != nil {
		return ConnectURI{}, err
	}

	if raw := q.Get("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &u.Metadata); err != nil {
			return ConnectURI{}, fmt.Errorf("%w: metadata: %v", ErrMalformedURI, err)
		}
	}
	return u, nil
}

func validateRelay(relay string) error {
	if relay == "" {
		return fmt.Errorf("%w: missing relay", ErrMalformedURI)
	}
	r, err := url.Parse(relay)
	if err != nil || (r.Scheme != "ws" && r.Scheme != "wss") || r.Host == "" {
		return fmt.Errorf("%w: relay %q is not a websocket url", ErrMalformedURI, relay)
	}
	return nil
}
