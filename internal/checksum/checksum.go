// Package checksum fingerprints note content for change detection and If-Match checks.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for note content already held as a string.
func String(s string) string {
	return Sum([]byte(s))
}
