package signer

import (
	"context"

	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// Handler performs the key operations a remote signer exposes. The
// remote-signing endpoint holds a Handler by reference, so a software key, a
// hardware token or an HSM client can all sit behind it.
type Handler interface {
	// GetPublicKey returns the x-only public key (hex) of the signing key.
	GetPublicKey(ctx context.Context) (string, error)

	// SignEvent signs ev and returns the Schnorr signature (hex). An empty
	// ev.PubKey is filled with the handler's key; a different key is an error.
	SignEvent(ctx context.Context, ev *nostr.Event) (string, error)

	// Delegate issues a NIP-26 delegation to delegatee under conditions.
	Delegate(ctx context.Context, delegatee string, conditions nip26.Conditions) (*nip26.Delegation, error)
}
