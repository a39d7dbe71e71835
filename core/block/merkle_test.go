package block

import (
	"testing"
)

func TestMerkleRootEmpty(t *testing.T) {
	if got := MerkleRoot(nil); got != "" {
		t.Errorf("expected empty root for empty input, got %q", got)
	}
}

func TestMerkleRootSingle(t *testing.T) {
	root := MerkleRoot([]string{"aa"})
	if root != "aa" {
		t.Errorf("single leaf should be its own root, got %q", root)
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	leaves := []string{"aa", "bb", "cc"}
	if MerkleRoot(leaves) != MerkleRoot([]string{"aa", "bb", "cc"}) {
		t.Error("merkle root must be deterministic")
	}
}

func TestMerkleRootOrderSensitive(t *testing.T) {
	if MerkleRoot([]string{"aa", "bb"}) == MerkleRoot([]string{"bb", "aa"}) {
		t.Error("merkle root must depend on leaf order")
	}
}

func TestMerkleRootOddLeafCount(t *testing.T) {
	// Odd counts pair the last leaf with itself; three leaves must still
	// produce a stable 64-char hex root.
	root := MerkleRoot([]string{"aa", "bb", "cc"})
	if len(root) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(root))
	}
}
