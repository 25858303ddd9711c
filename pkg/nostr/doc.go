// Package nostr provides the NIP-01 primitives the remote-signing protocol is
// built on: secp256k1 identities, events, tags and subscription filters.
//
// # Identities
//
// Secret keys are 32-byte secp256k1 scalars encoded as 64 hex characters.
// Public keys are BIP-340 x-only points, also 64 lowercase hex characters:
//
//	sk, _ := nostr.GeneratePrivateKey()
//	pk, _ := nostr.GetPublicKey(sk)
//
// # Events
//
// An Event is identified by the SHA-256 of its canonical serialization
// ([0,pubkey,created_at,kind,tags,content]) and signed with a Schnorr
// signature over that id:
//
//	ev := nostr.Event{Kind: nostr.KindTextNote, CreatedAt: nostr.Now(), Content: "hello"}
//	if err := ev.Sign(sk); err != nil {
//	    return err
//	}
//	ok, err := ev.CheckSignature()
//
// # Filters
//
// Filter mirrors the REQ filter object; tag conditions are keyed by the tag
// letter and serialized as "#p", "#e" and so on.
package nostr
