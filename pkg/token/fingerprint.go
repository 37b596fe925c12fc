package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintSize is the length of a fingerprint in characters.
const FingerprintSize = sha256.Size * 2

// Fingerprint returns the hex encoded SHA-256 digest of data.
func Fingerprint(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
