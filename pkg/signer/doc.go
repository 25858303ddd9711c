// Package signer defines the key-operation capability a remote signer
// exposes and a software implementation of it.
//
// # Handler
//
// Handler is the contract the remote-signing endpoint dispatches to:
//
//   - GetPublicKey returns the signer's public key
//   - SignEvent signs a Nostr event and returns the signature
//   - Delegate issues a NIP-26 delegation
//
// The endpoint takes care of authorization and approval before calling a
// Handler, so implementations only deal with key material.
//
// # KeySigner
//
// KeySigner keeps the secret key in memory:
//
//	h, err := signer.NewKeySigner(os.Getenv("NOSTR_SECRET_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sig, err := h.SignEvent(ctx, &nostr.Event{
//	    Kind:      nostr.KindTextNote,
//	    CreatedAt: nostr.Now(),
//	    Content:   "hello",
//	})
//
// Delegations are issued through a nip26.Issuer. Replace it with SetIssuer to
// control the clock or the default validity window.
package signer
