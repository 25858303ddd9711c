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

// Package nostrconnect provides version information for nostr-connect-go and
// the protocol revisions it speaks.
package nostrconnect

import "fmt"

const (
	// Version is the current version of nostr-connect-go
	Version = "0.1.0"

	// EventKind is the event kind carrying Nostr Connect envelopes
	EventKind = 24133

	// URIScheme is the scheme of pairing URIs
	URIScheme = "nostrconnect"
)

// SupportedNIPs lists the Nostr Implementation Possibilities this library implements.
var SupportedNIPs = []int{1, 4, 16, 26, 44, 46}

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version       string
	EventKind     int
	URIScheme     string
	SupportedNIPs []int
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	nips := make([]int, len(SupportedNIPs))
	copy(nips, SupportedNIPs)
	return VersionInfo{
		Version:       Version,
		EventKind:     EventKind,
		URIScheme:     URIScheme,
		SupportedNIPs: nips,
	}
}

// String renders the version line printed by the CLI.
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (kind %d, NIPs %v)", v.Version, v.EventKind, v.SupportedNIPs)
}
