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
	"errors"
	"fmt"
)

var (
	// ErrMalformedURI is returned when a pairing URI lacks its scheme, target
	// or relay, or carries unparsable metadata.
	ErrMalformedURI = errors.New("malformed connect uri")

	// ErrInvalidKey is returned when a public key is not a valid x-only key.
	ErrInvalidKey = errors.New("invalid public key")

	// ErrNotListening is returned by requests issued before Init.
	ErrNotListening = errors.New("connect session is not listening")

	// ErrNoTarget is returned when no signer public key is known.
	ErrNoTarget = errors.New("no target public key")

	// ErrTimeout is returned when no matching response arrives in time.
	ErrTimeout = errors.New("request timed out")

	// ErrUnauthorized is matched by remote errors for callers that are not
	// in the signer's connected-app set.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDenied is matched by remote errors for requests vetoed by an approver.
	ErrDenied = errors.New("denied")

	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("connect session closed")

	// ErrInvalidSignature is returned when a remote signature does not verify.
	ErrInvalidSignature = errors.New("remote signature does not verify")
)

// Wire error strings with a fixed meaning.
const (
	wireUnauthorized = "unauthorized"
	wireDenied       = "denied"
)

// emptyResponse is the RemoteError message for a response carrying neither
// a result nor an error.
const emptyResponse = "empty response"

// RemoteError is an error response reported by the signer.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Method, e.Message)
}

// Is lets errors.Is match ErrUnauthorized and ErrDenied.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Message == wireUnauthorized
	case ErrDenied:
		return e.Message == wireDenied
	}
	return false
}

// wireMessage maps a local failure to the error string sent to the caller.
func wireMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return wireUnauthorized
	case errors.Is(err, ErrDenied):
		return wireDenied
	default:
		return err.Error()
	}
}
