// Package adaptive provides the authenticated encryption used by the
// Gedis handshake.
//
// A cipher is either built from a raw key, or derived from an X25519 key
// exchange between a local private key and a peer public key (the
// "encryption context" shared by two peers). New selects the suite from
// hardware capabilities:
//
//   - AES-256-GCM: preferred when hardware AES support is available
//   - ChaCha20-Poly1305: fallback for systems without AES-NI
//
// Exchange-derived ciphers always use HandshakeSuite, so peers built for
// different architectures can read each other's tokens.
//
// Usage:
//
//	c, err := adaptive.NewFromExchange(localPriv, peerPub, adaptive.HandshakeInfo)
//	sealed, err := c.Encrypt(plaintext, nil)
//	plaintext, err := c.Decrypt(sealed, nil)
package adaptive
