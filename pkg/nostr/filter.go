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
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Filter selects events in a REQ subscription (NIP-01).
type Filter struct {
	IDs     []string
	Kinds   []int
	Authors []string
	// Tags maps a single-letter tag name (without '#') to accepted values.
	Tags  map[string][]string
	Since *Timestamp
	Until *Timestamp
	Limit int
}

// Matches reports whether ev satisfies every condition of the filter.
func (f Filter) Matches(ev *Event) bool {
	if ev == nil {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, ev.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, ev.PubKey) {
		return false
	}
	for name, values := range f.Tags {
		found := false
		for _, v := range values {
			if ev.Tags.ContainsValue(name, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	return true
}

// MarshalJSON renders tag conditions as "#<name>" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if len(f.IDs) > 0 {
		out["ids"] = f.IDs
	}
	if len(f.Kinds) > 0 {
		out["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		out["authors"] = f.Authors
	}
	for name, values := range f.Tags {
		out["#"+name] = values
	}
	if f.Since != nil {
		out["since"] = *f.Since
	}
	if f.Until != nil {
		out["until"] = *f.Until
	}
	if f.Limit > 0 {
		out["limit"] = f.Limit
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the wire form produced by MarshalJSON.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filter{}
	for key, value := range raw {
		var err error
		switch {
		case key == "ids":
			err = json.Unmarshal(value, &f.IDs)
		case key == "kinds":
			err = json.Unmarshal(value, &f.Kinds)
		case key == "authors":
			err = json.Unmarshal(value, &f.Authors)
		case key == "since":
			f.Since = new(Timestamp)
			err = json.Unmarshal(value, f.Since)
		case key == "until":
			f.Until = new(Timestamp)
			err = json.Unmarshal(value, f.Until)
		case key == "limit":
			err = json.Unmarshal(value, &f.Limit)
		case strings.HasPrefix(key, "#") && len(key) > 1:
			var values []string
			err = json.Unmarshal(value, &values)
			if f.Tags == nil {
				f.Tags = make(map[string][]string)
			}
			f.Tags[key[1:]] = values
		}
		if err != nil {
			return fmt.Errorf("invalid filter field %q: %w", key, err)
		}
	}
	return nil
}
