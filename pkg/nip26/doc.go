// Package nip26 issues and verifies NIP-26 delegations: time-bounded,
// optionally kind-restricted permissions for a delegatee key to publish
// events on behalf of a delegator.
//
// # Issuing
//
//	issuer := &nip26.Issuer{Now: clock.Now, DefaultWindow: 24 * time.Hour}
//	d, err := issuer.Delegate(delegatorSK, delegateePK, nip26.Conditions{
//	    Kind:  nip26.Kind(1),
//	    Until: clock.Now().Add(5 * time.Minute),
//	})
//
// A zero Since defaults to the issuer clock; a zero Until defaults to Since
// plus DefaultWindow. A window whose end is not after its start fails with
// ErrInvalidWindow before anything is signed.
//
// # Token
//
// The signed message is SHA-256("nostr:delegation:<delegatee>:<conditions>")
// where conditions looks like "kind=1&created_at>1674834236&created_at<1677426236".
// The signature is BIP-340 Schnorr by the delegator key, so any party can
// check it with Delegation.Verify or, for a published event, VerifyEvent.
package nip26
