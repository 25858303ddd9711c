// Package config loads and watches the YAML configuration of the signer
// daemon.
//
//	secret_key: ""            # or NOSTR_SECRET_KEY
//	relays:
//	  - wss://relay.nsec.app
//	apps:
//	  - b889ff5b1513b641e2a139f661a661364979c5beee91842f8f0ef42ab558e9d4
//	auto_approve:
//	  - sign_event
//	cipher: nip04
//	timeout: 5m
//
// Watch hot-reloads the file so the connected-app set can be edited while the
// daemon runs.
package config
