package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ID is a 32-byte SHA-256 identifier.
type ID [32]byte

// Empty is the zero-value ID (all zeros)
var Empty ID

// NewID generates a new ID by hashing input bytes
func NewID(data []byte) ID {
	hash := sha256.Sum256(data)
	return ID(hash)
}

// FromString parses a hex string into an ID
func FromString(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("id must be 32 bytes of hex")
	}
	copy(id[:], raw)
	return id, nil
}

// String converts an ID back to a hex string
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsEmpty reports whether the ID is all zeros.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// IDFromString creates an ID from a string (using SHA-256)
func IDFromString(s string) ID {
	return NewID([]byte(s))
}
