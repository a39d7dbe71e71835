package block

import (
	"errors"
	"time"

	"sentinelchain/core/mempool"
)

var ErrEmptyBatch = errors.New("candidate block needs at least one transaction")

// Assembler packages mempool batches into candidate blocks, keeping the
// height sequence gapless and the previous-hash link intact.
type Assembler struct {
	clock func() time.Time
}

func NewAssembler() *Assembler {
	return &Assembler{clock: time.Now}
}

// WithClock overrides the assembler's clock for deterministic tests.
func (a *Assembler) WithClock(clock func() time.Time) *Assembler {
	a.clock = clock
	return a
}

// Build creates the candidate that follows prev. A nil prev produces the
// genesis candidate at height 0 with the fixed previous-hash sentinel.
func (a *Assembler) Build(prev *Block, txs []mempool.Transaction, metadata map[string]string, difficulty int) (*Block, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyBatch
	}
	if difficulty < 1 {
		difficulty = 1
	}

	height := uint64(0)
	prevHash := GenesisPrevHash
	if prev != nil {
		height = prev.Height + 1
		prevHash = prev.Hash
	}

	b := &Block{
		Height:       height,
		PrevHash:     prevHash,
		Timestamp:    a.clock().UTC(),
		Metadata:     metadata,
		Transactions: txs,
		Difficulty:   difficulty,
	}
	b.MerkleRoot = MerkleRoot(b.TxIDs())
	return b, nil
}
