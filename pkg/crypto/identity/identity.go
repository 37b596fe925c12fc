// Package identity manages peer identities for the Gedis handshake.
//
// An identity is a numeric peer id plus a 32-byte seed. The seed yields an
// ed25519 signing key and an X25519 exchange key; the two public halves are
// what a Directory publishes for the peer.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/yndnr/gedis-go/pkg/crypto/adaptive"
)

// SeedSize is the size of an identity seed in bytes.
const SeedSize = ed25519.SeedSize

var (
	// ErrInvalidSeed is returned when a seed is not SeedSize bytes.
	ErrInvalidSeed = errors.New("identity: invalid seed size")

	// ErrInvalidSignature is returned when a signed message fails verification.
	ErrInvalidSignature = errors.New("identity: invalid signature")
)

// PublicKeys are the public halves of an identity.
type PublicKeys struct {
	SignKey     ed25519.PublicKey
	ExchangeKey []byte
}

// Identity is a peer's private key material.
type Identity struct {
	ID int64

	seed        []byte
	signKey     ed25519.PrivateKey
	exchangeKey []byte
	public      PublicKeys
}

// Generate creates a new random identity.
func Generate(id int64) (*Identity, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: generate seed: %w", err)
	}
	return FromSeed(id, seed)
}

// FromSeed derives an identity from a seed.
func FromSeed(id int64, seed []byte) (*Identity, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeed
	}

	signKey := ed25519.NewKeyFromSeed(seed)

	// Same clamping input as the ed25519 scalar; X25519 clamps internally.
	h := sha512.Sum512(seed)
	exchangeKey := make([]byte, 32)
	copy(exchangeKey, h[:32])

	exchangePub, err := adaptive.PublicKey(exchangeKey)
	if err != nil {
		return nil, fmt.Errorf("identity: derive exchange key: %w", err)
	}

	return &Identity{
		ID:          id,
		seed:        append([]byte(nil), seed...),
		signKey:     signKey,
		exchangeKey: exchangeKey,
		public: PublicKeys{
			SignKey:     signKey.Public().(ed25519.PublicKey),
			ExchangeKey: exchangePub,
		},
	}, nil
}

// Seed returns a copy of the identity seed.
func (i *Identity) Seed() []byte {
	return append([]byte(nil), i.seed...)
}

// Public returns the public keys of the identity.
func (i *Identity) Public() PublicKeys {
	return i.public
}

// Sign returns signature||msg.
func (i *Identity) Sign(msg []byte) []byte {
	sig := ed25519.Sign(i.signKey, msg)
	out := make([]byte, 0, len(sig)+len(msg))
	out = append(out, sig...)
	return append(out, msg...)
}

// Open verifies a message produced by Sign and returns the message.
func Open(signKey ed25519.PublicKey, signed []byte) ([]byte, error) {
	if len(signKey) != ed25519.PublicKeySize || len(signed) < ed25519.SignatureSize {
		return nil, ErrInvalidSignature
	}
	sig, msg := signed[:ed25519.SignatureSize], signed[ed25519.SignatureSize:]
	if !ed25519.Verify(signKey, msg, sig) {
		return nil, ErrInvalidSignature
	}
	return msg, nil
}

// SharedCipher returns the encryption context shared with a peer.
func (i *Identity) SharedCipher(peer PublicKeys) (*adaptive.Cipher, error) {
	return adaptive.NewFromExchange(i.exchangeKey, peer.ExchangeKey, adaptive.HandshakeInfo)
}
