package mining

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"sentinelchain/core/block"
)

// PowHash computes the layer-1 digest over a block's seal base and a nonce.
func PowHash(sealBase []byte, nonce uint64) string {
	h := sha256.New()
	h.Write(sealBase)
	h.Write([]byte(strconv.FormatUint(nonce, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// MeetsDifficulty reports whether the hash carries at least difficulty
// leading zero hex digits.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty < 1 || difficulty > len(hash) {
		return false
	}
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}

// ValidatePoW recomputes the block's hash from its recorded nonce and
// difficulty and checks it against the target. It is pure and deterministic:
// the finality checker calls it instead of trusting the miner's claim, so
// any payload mutation after mining fails here.
func ValidatePoW(b *block.Block) bool {
	hash := PowHash(b.SealBase(), b.Nonce)
	if hash != b.Hash {
		return false
	}
	return MeetsDifficulty(hash, b.Difficulty)
}
