package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length of every suite.
const KeySize = 32

// Suite names an AEAD algorithm.
type Suite string

const (
	SuiteAESGCM   Suite = "aes-256-gcm"
	SuiteChaCha20 Suite = "chacha20-poly1305"
)

var (
	// ErrCiphertextTooShort is returned when the input cannot hold a nonce
	// and a tag.
	ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")

	// ErrKeySize is returned for keys that are not KeySize bytes.
	ErrKeySize = fmt.Errorf("adaptive: key must be %d bytes", KeySize)
)

// PreferredSuite returns AES-GCM on architectures where crypto/aes is
// hardware accelerated and ChaCha20-Poly1305 elsewhere.
func PreferredSuite() Suite {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return SuiteAESGCM
	}
	return SuiteChaCha20
}

// Cipher seals messages as nonce || ciphertext || tag with a fresh random
// nonce per message. It is safe for concurrent use.
type Cipher struct {
	suite Suite
	aead  cipher.AEAD
}

// New creates a cipher of the preferred suite.
func New(key []byte) (*Cipher, error) {
	return NewSuite(key, PreferredSuite())
}

// NewSuite creates a cipher of the given suite.
func NewSuite(key []byte, suite Suite) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch suite {
	case SuiteAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case SuiteChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown suite %q", suite)
	}
	if err != nil {
		return nil, err
	}
	return &Cipher{suite: suite, aead: aead}, nil
}

// Suite returns the algorithm of c.
func (c *Cipher) Suite() Suite { return c.suite }

// SealedSize returns the sealed length of a plaintext of n bytes.
func (c *Cipher) SealedSize(n int) int {
	return c.aead.NonceSize() + n + c.aead.Overhead()
}

// Encrypt seals plaintext, authenticating additionalData with it.
func (c *Cipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, ns, c.SealedSize(len(plaintext)))
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[:ns], plaintext, additionalData), nil
}

// Decrypt opens a message produced by Encrypt with the same
// additionalData.
func (c *Cipher) Decrypt(sealed, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < c.SealedSize(0) {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, sealed[:ns], sealed[ns:], additionalData)
}
