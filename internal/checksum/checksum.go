// Package checksum provides the low-level file primitives the rest of the
// engine builds on: content hashing, atomic writes, and the raw frontmatter
// block split/join used to serialize entities back to disk (spec.md §4.2).
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase-hex SHA-256 checksum of content.
func Sum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
