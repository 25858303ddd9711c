// Package relay provides the relay transport for the remote-signing
// protocol: a publish/subscribe Client interface and several implementations
// of it.
//
// # Implementations
//
//   - Conn: a websocket connection to one NIP-01 relay
//   - Pool: fan-out over several Clients with duplicate suppression
//   - Memory: an in-process relay for tests and single-binary demos
//
// Server is the matching websocket relay, useful for local development and
// end-to-end tests:
//
//	srv := httptest.NewServer(relay.NewServer())
//	conn, err := relay.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	sub, err := conn.Subscribe(ctx, nostr.Filter{Kinds: []int{24133}}, func(ev nostr.Event) {
//	    // handle ev
//	})
//
// # Delivery
//
// Conn invokes handlers from its single read goroutine, in the order the relay
// sent the events. Memory delivers every event on its own goroutine. Callers
// that need ordering must not rely on either; the remote-signing engine
// correlates by request id instead.
//
// Ephemeral kinds (20000 to 29999, which includes the remote-signing kind
// 24133) are forwarded to live subscribers but never stored or replayed.
package relay
