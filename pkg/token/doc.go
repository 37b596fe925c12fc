// Package token fingerprints authentication tokens.
//
// A fingerprint is the hex encoded SHA-256 digest of the token bytes. It
// has a fixed size whatever the token length, so it is used as the key of
// the handshake replay cache instead of the token itself.
package token
