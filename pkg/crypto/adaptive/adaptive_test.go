package adaptive

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"testing"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

var key32 = make([]byte, KeySize)

func init() {
	for i := range key32 {
		key32[i] = byte(i)
	}
}

func TestNew(t *testing.T) {
	c, err := New(key32)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Suite() != PreferredSuite() {
		t.Errorf("Suite() = %s, want %s", c.Suite(), PreferredSuite())
	}
}

func TestNewSuite(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		suite   Suite
		wantErr bool
	}{
		{"aes-256", key32, SuiteAESGCM, false},
		{"aes short key", make([]byte, 16), SuiteAESGCM, true},
		{"chacha20", key32, SuiteChaCha20, false},
		{"chacha20 long key", make([]byte, 33), SuiteChaCha20, true},
		{"unknown", key32, "rot13", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewSuite(tt.key, tt.suite)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSuite() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Suite() != tt.suite {
				t.Errorf("Suite() = %s, want %s", c.Suite(), tt.suite)
			}
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, suite := range []Suite{SuiteAESGCM, SuiteChaCha20} {
		t.Run(string(suite), func(t *testing.T) {
			c, err := NewSuite(key32, suite)
			if err != nil {
				t.Fatal(err)
			}

			for _, pt := range [][]byte{nil, []byte("1700000000"), bytes.Repeat([]byte("x"), 4096)} {
				sealed, err := c.Encrypt(pt, []byte("aad"))
				if err != nil {
					t.Fatalf("Encrypt() error = %v", err)
				}
				if len(sealed) != c.SealedSize(len(pt)) {
					t.Errorf("sealed length = %d, want %d", len(sealed), c.SealedSize(len(pt)))
				}
				got, err := c.Decrypt(sealed, []byte("aad"))
				if err != nil {
					t.Fatalf("Decrypt() error = %v", err)
				}
				if !bytes.Equal(got, pt) {
					t.Errorf("Decrypt() = %q, want %q", got, pt)
				}
				if _, err := c.Decrypt(sealed, []byte("other")); err == nil {
					t.Error("Decrypt() with wrong additional data should fail")
				}
			}
		})
	}
}

func TestDecryptTampered(t *testing.T) {
	c, _ := NewSuite(key32, SuiteChaCha20)
	sealed, err := c.Encrypt([]byte("payload"), nil)
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := c.Decrypt(sealed, nil); err == nil {
		t.Error("Decrypt() of tampered ciphertext should fail")
	}
}

func TestDecryptTooShort(t *testing.T) {
	c, _ := NewSuite(key32, SuiteAESGCM)
	if _, err := c.Decrypt([]byte("short"), nil); err != ErrCiphertextTooShort {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrCiphertextTooShort)
	}
}

func TestEncryptUniqueness(t *testing.T) {
	c, _ := New(key32)
	a, _ := c.Encrypt([]byte("same"), nil)
	b, _ := c.Encrypt([]byte("same"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func newExchangeKey(t *testing.T) (priv, pub []byte) {
	t.Helper()
	priv = make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		t.Fatal(err)
	}
	pub, err := PublicKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return priv, pub
}

func TestNewFromExchange(t *testing.T) {
	alicePriv, alicePub := newExchangeKey(t)
	bobPriv, bobPub := newExchangeKey(t)
	_, evePub := newExchangeKey(t)

	alice, err := NewFromExchange(alicePriv, bobPub, HandshakeInfo)
	if err != nil {
		t.Fatalf("NewFromExchange() error = %v", err)
	}
	bob, err := NewFromExchange(bobPriv, alicePub, HandshakeInfo)
	if err != nil {
		t.Fatalf("NewFromExchange() error = %v", err)
	}

	sealed, err := alice.Encrypt([]byte("1700000000"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := bob.Decrypt(sealed, nil)
	if err != nil {
		t.Fatalf("peer Decrypt() error = %v", err)
	}
	if string(got) != "1700000000" {
		t.Errorf("peer Decrypt() = %q", got)
	}

	eve, err := NewFromExchange(bobPriv, evePub, HandshakeInfo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eve.Decrypt(sealed, nil); err == nil {
		t.Error("Decrypt() with the wrong peer key should fail")
	}

	other, _ := NewFromExchange(bobPriv, alicePub, "other-context")
	if _, err := other.Decrypt(sealed, nil); err == nil {
		t.Error("Decrypt() with a different info string should fail")
	}
}

// TestNewFromExchange_FixedSuite seals with an explicit ChaCha20 cipher
// over the exchanged key, as a peer without AES hardware would, and opens
// with the derived cipher of the other side.
func TestNewFromExchange_FixedSuite(t *testing.T) {
	alicePriv, alicePub := newExchangeKey(t)
	bobPriv, bobPub := newExchangeKey(t)

	shared, err := curve25519.X25519(alicePriv, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(HandshakeInfo)), key); err != nil {
		t.Fatal(err)
	}

	for _, suite := range []Suite{SuiteAESGCM, SuiteChaCha20} {
		t.Run(string(suite), func(t *testing.T) {
			sender, err := NewSuite(key, suite)
			if err != nil {
				t.Fatal(err)
			}
			sealed, err := sender.Encrypt([]byte("1700000000"), nil)
			if err != nil {
				t.Fatal(err)
			}

			bob, err := NewFromExchange(bobPriv, alicePub, HandshakeInfo)
			if err != nil {
				t.Fatalf("NewFromExchange() error = %v", err)
			}
			if bob.Suite() != HandshakeSuite {
				t.Errorf("Suite() = %s, want %s", bob.Suite(), HandshakeSuite)
			}

			_, err = bob.Decrypt(sealed, nil)
			if suite == HandshakeSuite && err != nil {
				t.Errorf("Decrypt() error = %v", err)
			}
			if suite != HandshakeSuite && err == nil {
				t.Error("Decrypt() of a token sealed with another suite should fail")
			}
		})
	}
}

func TestNewFromExchange_InvalidKeys(t *testing.T) {
	priv, pub := newExchangeKey(t)
	if _, err := NewFromExchange(priv[:16], pub, HandshakeInfo); err == nil {
		t.Error("short private key should fail")
	}
	if _, err := NewFromExchange(priv, pub[:16], HandshakeInfo); err == nil {
		t.Error("short public key should fail")
	}
	if _, err := NewFromExchange(priv, make([]byte, 32), HandshakeInfo); err != ErrLowOrderPoint {
		t.Errorf("zero public key error = %v, want %v", err, ErrLowOrderPoint)
	}
}

func BenchmarkEncrypt_1KB(b *testing.B) {
	c, _ := New(key32)
	data := make([]byte, 1024)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Encrypt(data, nil)
	}
}
