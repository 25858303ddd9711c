// Package commands defines the nostr-connect CLI.
//
// Commands
//
//   - keygen                  Generate a key pair
//   - uri encode|decode       Build or inspect a nostrconnect:// pairing URI
//   - relay                   Run a local development relay
//   - signer                  Run the remote signer daemon
//   - pair                    Approve an application's pairing URI
//   - request pubkey|sign|delegate|describe
//     Send a request to a remote signer
//
// Secret keys come from --secret-key or NOSTR_SECRET_KEY. The signer daemon
// also reads its YAML config file and reloads it on change.
package commands
