package adaptive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// HandshakeInfo is the HKDF context string for handshake keys.
const HandshakeInfo = "gedis-handshake-v1"

// HandshakeSuite is the suite of every exchange-derived cipher. Peers on
// different architectures must agree on it, so it does not follow
// PreferredSuite.
const HandshakeSuite = SuiteChaCha20

// ErrLowOrderPoint is returned when the peer key yields an all-zero secret.
var ErrLowOrderPoint = errors.New("adaptive: peer public key is a low order point")

// NewFromExchange derives a cipher from an X25519 exchange between the
// local private key and the peer public key. Both peers derive the same
// cipher from their own private key and the other's public key. The
// cipher always uses HandshakeSuite.
func NewFromExchange(privateKey, peerPublicKey []byte, info string) (*Cipher, error) {
	if len(privateKey) != curve25519.ScalarSize {
		return nil, fmt.Errorf("adaptive: private key must be %d bytes", curve25519.ScalarSize)
	}
	if len(peerPublicKey) != curve25519.PointSize {
		return nil, fmt.Errorf("adaptive: peer public key must be %d bytes", curve25519.PointSize)
	}

	shared, err := curve25519.X25519(privateKey, peerPublicKey)
	if err != nil {
		return nil, ErrLowOrderPoint
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive key: %w", err)
	}

	return NewSuite(key, HandshakeSuite)
}

// PublicKey returns the X25519 public key for a private key.
func PublicKey(privateKey []byte) ([]byte, error) {
	return curve25519.X25519(privateKey, curve25519.Basepoint)
}
