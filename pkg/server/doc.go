// Package server provides HTTP middleware for the websocket relay.
//
// A Nostr relay shares one URL between the websocket endpoint and its NIP-11
// information document. InfoMiddleware answers requests that carry
// "Accept: application/nostr+json" with the document and passes every other
// request, including websocket upgrades, to the wrapped handler.
//
// # Basic Usage
//
//	info := server.DefaultRelayInfo()
//	info.Contact = "admin@example.com"
//
//	mw := server.NewInfoMiddleware(info)
//	http.Handle("/", mw.Wrap(relay.NewServer()))
//
// # CORS
//
// CORS headers are on by default so browser apps can fetch the document.
// Preflight OPTIONS requests are answered with 204 directly. Disable with
// SetCORS(false), in which case OPTIONS reaches the relay handler.
//
// # Errors
//
// Information requests with a method other than GET or HEAD are refused
// through the ErrorHandler, which defaults to http.Error. Install a custom one
// with SetErrorHandler.
package server
