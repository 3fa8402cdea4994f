// Package hash provides shared hashing utilities for content digests and
// truncated IDs.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// IDLength is the number of hex characters used for truncated hash IDs.
// 16 hex chars = 8 bytes = 64 bits of entropy (sufficient for collision resistance).
const IDLength = 16

// SHA256 returns the full SHA256 hash of the input string as a hex string.
// Used as the content digest for embedding cache keys, where a key must
// identify its content for the lifetime of the cache.
func SHA256(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// TruncatedSHA256 returns a truncated SHA256 hash of the input string.
// The result is a 16-character hex string. Used for ranking-run IDs,
// where a short stable identifier is enough.
func TruncatedSHA256(data string) string {
	return SHA256(data)[:IDLength]
}
