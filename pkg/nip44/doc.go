// Package nip44 implements version 2 of the NIP-44 payload encryption:
// secp256k1 ECDH, HKDF-SHA256 key derivation, ChaCha20 with length-hiding
// padding, and HMAC-SHA256 authentication over nonce and ciphertext.
//
// Payloads are base64(version || nonce || ciphertext || mac) with version 2.
// Cipher satisfies the same interface as nip04.Cipher, so either can be
// handed to the connect package.
package nip44
