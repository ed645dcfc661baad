package timing

import (
	"crypto/sha256"
	"encoding/hex"
)

// TextHash returns the stable content hash used to key cached timing sets.
// It is a hex-encoded SHA-256 of the exact narration text: any change to the
// text, including whitespace, produces a different hash, because a timing set
// is meaningless against different text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
