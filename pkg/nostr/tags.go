package nostr

import "encoding/json"

// Tag is a single event tag such as ["p", "<pubkey>"].
type Tag []string

// Key returns the tag name, or "" for an empty tag.
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first tag value, or "" when absent.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is the tag list of an event.
type Tags []Tag

// MarshalJSON renders a nil tag list as [] rather than null.
func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Tag(t))
}

// Find returns the first tag named key that has a value.
func (t Tags) Find(key string) Tag {
	for _, tag := range t {
		if tag.Key() == key && len(tag) >= 2 {
			return tag
		}
	}
	return nil
}

// ContainsValue reports whether a tag named key carries value as its first value.
func (t Tags) ContainsValue(key, value string) bool {
	for _, tag := range t {
		if tag.Key() == key && tag.Value() == value {
			return true
		}
	}
	return false
}
