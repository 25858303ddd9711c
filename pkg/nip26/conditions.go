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

package nip26

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Conditions restrict what a delegatee may sign: an optional event kind and a
// created_at window. A zero Since or Until is filled in by the Issuer.
type Conditions struct {
	Kind  *int
	Since time.Time
	Until time.Time
}

// Kind returns a pointer to k for use in Conditions literals.
func Kind(k int) *int {
	return &k
}

// String renders the query-string form that is signed, for example
// "kind=1&created_at>1674834236&created_at<1677426236".
func (c Conditions) String() string {
	var parts []string
	if c.Kind != nil {
		parts = append(parts, "kind="+strconv.Itoa(*c.Kind))
	}
	if !c.Since.IsZero() {
		parts = append(parts, "created_at>"+strconv.FormatInt(c.Since.Unix(), 10))
	}
	if !c.Until.IsZero() {
		parts = append(parts, "created_at<"+strconv.FormatInt(c.Until.Unix(), 10))
	}
	return strings.Join(parts, "&")
}

// Validate checks that the window is non-empty.
func (c Conditions) Validate() error {
	if c.Since.IsZero() || c.Until.IsZero() {
		return fmt.Errorf("%w: window bounds are required", ErrInvalidWindow)
	}
	if c.Until.Unix() <= c.Since.Unix() {
		return fmt.Errorf("%w: until %d is not after since %d", ErrInvalidWindow, c.Until.Unix(), c.Since.Unix())
	}
	return nil
}

// Allows reports whether an event of kind created at createdAt is covered.
func (c Conditions) Allows(kind int, createdAt time.Time) bool {
	if c.Kind != nil && *c.Kind != kind {
		return false
	}
	ts := createdAt.Unix()
	if !c.Since.IsZero() && ts <= c.Since.Unix() {
		return false
	}
	if !c.Until.IsZero() && ts >= c.Until.Unix() {
		return false
	}
	return true
}

// ParseConditions parses the string form produced by Conditions.String.
func ParseConditions(s string) (Conditions, error) {
	var c Conditions
	if s == "" {
		return c, fmt.Errorf("%w: empty", ErrInvalidConditions)
	}
	for _, clause := range strings.Split(s, "&") {
		switch {
		case strings.HasPrefix(clause, "kind="):
			k, err := strconv.Atoi(strings.TrimPrefix(clause, "kind="))
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %q", ErrInvalidConditions, clause)
			}
			c.Kind = &k
		case strings.HasPrefix(clause, "created_at>"):
			ts, err := strconv.ParseInt(strings.TrimPrefix(clause, "created_at>"), 10, 64)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %q", ErrInvalidConditions, clause)
			}
			c.Since = time.Unix(ts, 0)
		case strings.HasPrefix(clause, "created_at<"):
			ts, err := strconv.ParseInt(strings.TrimPrefix(clause, "created_at<"), 10, 64)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %q", ErrInvalidConditions, clause)
			}
			c.Until = time.Unix(ts, 0)
		default:
			return Conditions{}, fmt.Errorf("%w: unknown clause %q", ErrInvalidConditions, clause)
		}
	}
	return c, nil
}
