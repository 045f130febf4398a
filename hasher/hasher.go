// Package hasher computes content digests for raw record change detection.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexLength is the length of a digest rendered as lowercase hex.
const HexLength = 64

// Sum returns the SHA-256 digest of body as a 64-character lowercase hex string.
// Equal bodies always produce equal digests, so stored digests may be compared
// with a plain string equality check.
func Sum(body []byte) string {
	h := sha256.Sum256(body)
	return hex.EncodeToString(h[:])
}

// IsValidDigest reports whether s looks like a digest produced by Sum.
func IsValidDigest(s string) bool {
	if len(s) != HexLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
