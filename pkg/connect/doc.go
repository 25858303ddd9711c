// Package connect implements the Nostr Connect remote-signing protocol: an
// application without a private key (Connect) asks a key holder (Signer) to
// return its public key, sign events or issue NIP-26 delegations, over an
// untrusted relay.
//
// # Pairing
//
// An application advertises itself with a ConnectURI:
//
//	nostrconnect://<app pubkey>?relay=wss%3A%2F%2Frelay.example&metadata=%7B%22name%22%3A%22My+App%22%7D
//
// The signer user approves it with Signer.Approve, which adds the app to the
// connected-app set and sends it a connect announcement. Alternatively the
// app calls Connect.RequestConnect; the signer only accepts after a
// registered Approver agrees.
//
// # Application side
//
//	c, err := connect.NewConnect(connect.Config{
//	    SecretKey: sessionKey,
//	    Target:    signerPubkey,
//	    Relay:     conn,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := c.Init(ctx); err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	pubkey, err := c.GetPublicKey(ctx)
//	signed, err := c.SignEvent(ctx, nostr.Event{Kind: 1, Content: "hello"})
//	d, err := c.Delegate(ctx, delegatee, connect.DelegateOptions{
//	    Kind:  nip26.Kind(1),
//	    Until: time.Now().Add(connect.FiveMinutes),
//	})
//
// Each request gets a fresh id. Responses are matched by id and sender only,
// never by arrival order, so concurrent calls on one session are safe. A
// request without a response within Config.Timeout fails with ErrTimeout and
// a late response is dropped.
//
// # Signer side
//
//	s, err := connect.NewSigner(connect.SignerConfig{
//	    SecretKey: userKey,
//	    Relay:     conn,
//	    Apps:      []string{appPubkey},
//	})
//	s.OnRequest(func(ctx context.Context, n connect.Notification) bool {
//	    return promptUser(ctx, n)
//	})
//	if err := s.Listen(ctx); err != nil {
//	    return err
//	}
//
// Requests from keys outside the connected-app set get an "unauthorized"
// error response; vetoed requests get "denied". Both surface at the caller as
// a *RemoteError matching ErrUnauthorized or ErrDenied with errors.Is.
//
// # Wire format
//
// Envelopes are JSON, encrypted with the Cipher (NIP-04 by default) and sent
// as kind 24133 events tagged with the recipient key:
//
//	{"id":"...","method":"sign_event","params":[{...}]}
//	{"id":"...","result":"<sig>"}
//	{"id":"...","error":"denied"}
package connect
