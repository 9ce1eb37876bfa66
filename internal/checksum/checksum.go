// Package checksum computes the fixed-width digests used to detect
// corruption or tampering of persisted artifacts. CRC-32 is enough for
// tamper detection; this is not a cryptographic boundary.
package checksum

import (
	"fmt"
	"hash/crc32"
)

// Width is the number of hex characters in a digest.
const Width = 8

// Digest returns the CRC-32 (IEEE) digest of data as lowercase hex.
// Deterministic across processes and platforms.
func Digest(data []byte) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))
}

// Verify reports whether data matches the expected digest. It never fails
// any other way; callers decide whether a mismatch is fatal.
func Verify(data []byte, expected string) bool {
	return Digest(data) == expected
}

// WellFormed reports whether s has the shape of a digest.
func WellFormed(s string) bool {
	if len(s) != Width {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
