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
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// DefaultWindow is the validity period used when Conditions.Until is unset.
const DefaultWindow = 30 * 24 * time.Hour

var (
	// ErrInvalidWindow is returned when the validity window is empty or inverted.
	ErrInvalidWindow = errors.New("invalid delegation window")

	// ErrInvalidConditions is returned for an unparsable condition string.
	ErrInvalidConditions = errors.New("invalid delegation conditions")

	// ErrInvalidSignature is returned when a delegation token does not verify.
	ErrInvalidSignature = errors.New("invalid delegation signature")

	// ErrConditionsNotMet is returned when an event falls outside its delegation.
	ErrConditionsNotMet = errors.New("delegation conditions not met")

	// ErrNoDelegation is returned by VerifyEvent for events without a delegation tag.
	ErrNoDelegation = errors.New("event has no delegation tag")
)

// Delegation is an issued NIP-26 delegation.
type Delegation struct {
	Delegator  string `json:"delegator"`
	Delegatee  string `json:"delegatee"`
	Conditions string `json:"conditions"`
	Sig        string `json:"sig"`
}

// Token returns the string whose SHA-256 is signed:
// "nostr:delegation:<delegatee>:<conditions>".
func (d Delegation) Token() string {
	return Token(d.Delegatee, d.Conditions)
}

// Token builds the delegation token for delegatee and a condition string.
func Token(delegatee, conditions string) string {
	return "nostr:delegation:" + delegatee + ":" + conditions
}

// Tag renders the delegation tag to attach to events signed by the delegatee.
func (d Delegation) Tag() nostr.Tag {
	return nostr.Tag{"delegation", d.Delegator, d.Conditions, d.Sig}
}

// Verify checks the signature using only public data.
func (d Delegation) Verify() error {
	if !nostr.IsValidPublicKey(d.Delegator) || !nostr.IsValidPublicKey(d.Delegatee) {
		return nostr.ErrInvalidPublicKey
	}
	if _, err := ParseConditions(d.Conditions); err != nil {
		return err
	}
	sum := sha256.Sum256([]byte(d.Token()))
	if !nostr.VerifyHash(d.Delegator, sum[:], d.Sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Issuer creates delegations. Now and DefaultWindow fill in missing window
// bounds so issuance is deterministic under test.
type Issuer struct {
	Now           func() time.Time
	DefaultWindow time.Duration
}

// NewIssuer returns an Issuer using the wall clock and DefaultWindow.
func NewIssuer() *Issuer {
	return &Issuer{Now: time.Now, DefaultWindow: DefaultWindow}
}

// Resolve fills in an absent Since with Now and an absent Until with
// Since+DefaultWindow, then validates the window.
func (i *Issuer) Resolve(c Conditions) (Conditions, error) {
	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	window := i.DefaultWindow
	if window <= 0 {
		window = DefaultWindow
	}

	if c.Since.IsZero() {
		c.Since = now()
	}
	if c.Until.IsZero() {
		c.Until = c.Since.Add(window)
	}
	if err := c.Validate(); err != nil {
		return Conditions{}, err
	}
	return c, nil
}

// Delegate issues a delegation from the holder of delegatorSK to delegatee.
func (i *Issuer) Delegate(delegatorSK, delegatee string, c Conditions) (*Delegation, error) {
	resolved, err := i.Resolve(c)
	if err != nil {
		return nil, err
	}
	if !nostr.IsValidPublicKey(delegatee) {
		return nil, fmt.Errorf("delegatee: %w", nostr.ErrInvalidPublicKey)
	}
	delegator, err := nostr.GetPublicKey(delegatorSK)
	if err != nil {
		return nil, err
	}

	d := Delegation{
		Delegator:  delegator,
		Delegatee:  delegatee,
		Conditions: resolved.String(),
	}
	sum := sha256.Sum256([]byte(d.Token()))
	d.Sig, err = nostr.SignHash(delegatorSK, sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign delegation: %w", err)
	}
	return &d, nil
}

// Delegate issues a delegation with the wall clock and DefaultWindow.
func Delegate(delegatorSK, delegatee string, c Conditions) (*Delegation, error) {
	return NewIssuer().Delegate(delegatorSK, delegatee, c)
}

// VerifyEvent validates the delegation tag of an event signed by a delegatee:
// the token signature, and that the event kind and created_at satisfy the
// conditions. It returns the verified delegation.
func VerifyEvent(ev *nostr.Event) (*Delegation, error) {
	tag := ev.Tags.Find("delegation")
	if len(tag) < 4 {
		return nil, ErrNoDelegation
	}

	d := Delegation{
		Delegator:  tag[1],
		Delegatee:  ev.PubKey,
		Conditions: tag[2],
		Sig:        tag[3],
	}
	if err := d.Verify(); err != nil {
		return nil, err
	}

	c, err := ParseConditions(d.Conditions)
	if err != nil {
		return nil, err
	}
	if !c.Allows(ev.Kind, ev.CreatedAt.Time()) {
		return nil, ErrConditionsNotMet
	}
	return &d, nil
}
