package relay

import (
	"context"
	"errors"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

var (
	// ErrRejected is returned by Publish when the relay answers OK=false.
	ErrRejected = errors.New("relay rejected event")

	// ErrConnectionClosed is returned for operations on a closed connection.
	ErrConnectionClosed = errors.New("relay connection closed")
)

// Handler receives events for a subscription. Handlers run on the relay's
// delivery goroutine and must not block on work that needs the same relay.
type Handler func(ev nostr.Event)

// Subscription is a live REQ.
type Subscription interface {
	ID() string
	Close() error
}

// Client is the publish/subscribe surface the remote-signing engine needs.
type Client interface {
	// Publish sends ev and waits for the relay to accept it.
	Publish(ctx context.Context, ev nostr.Event) error

	// Subscribe opens a subscription that lives until Close is called on it.
	// ctx only bounds the subscribe call itself.
	Subscribe(ctx context.Context, filter nostr.Filter, handler Handler) (Subscription, error)
}

// IsEphemeral reports whether events of kind are relayed but never stored (NIP-16).
func IsEphemeral(kind int) bool {
	return kind >= 20000 && kind < 30000
}
