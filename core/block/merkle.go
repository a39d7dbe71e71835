package block

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleRoot computes the Merkle root of a list of hashes (as hex strings).
// If the list is empty, returns an empty string.
func MerkleRoot(hashes []string) string {
	n := len(hashes)
	if n == 0 {
		return ""
	}
	for n > 1 {
		var nextLevel []string
		for i := 0; i < n; i += 2 {
			h := sha256.New()
			h.Write([]byte(hashes[i]))
			if i+1 < n {
				h.Write([]byte(hashes[i+1]))
			} else {
				// Odd node: hash with itself
				h.Write([]byte(hashes[i]))
			}
			nextLevel = append(nextLevel, hex.EncodeToString(h.Sum(nil)))
		}
		hashes = nextLevel
		n = len(hashes)
	}
	return hashes[0]
}
