package mining

import (
	"log"

	"sentinelchain/core/block"
)

// DefaultAttemptBudget is the number of nonces tried at a given difficulty
// before the stuck-search guard relaxes it.
const DefaultAttemptBudget = 1_000_000

// Miner runs the layer-1 nonce search. Each Mine call owns its nonce
// counter and touches no shared state, so independent candidates may be
// mined in parallel.
type Miner struct {
	attemptBudget uint64
}

func NewMiner() *Miner {
	return &Miner{attemptBudget: DefaultAttemptBudget}
}

// WithAttemptBudget overrides the stuck-search budget. Values below 1 keep
// the default.
func (m *Miner) WithAttemptBudget(budget uint64) *Miner {
	if budget > 0 {
		m.attemptBudget = budget
	}
	return m
}

// Mine searches nonces from 0 upward until the block's hash carries the
// required leading zero hex digits, then records the nonce, hash, and the
// difficulty actually satisfied on the block.
//
// Stuck-search guard: after the attempt budget is exhausted the difficulty
// drops by one (floor 1) and the nonce resets. The search therefore always
// terminates; the declared difficulty is a target, not a guarantee, and the
// finality checker re-validates whatever was recorded.
func (m *Miner) Mine(b *block.Block) (uint64, string) {
	difficulty := b.Difficulty
	if difficulty < 1 {
		difficulty = 1
	}

	for {
		b.Difficulty = difficulty
		base := b.SealBase()
		var nonce, attempts uint64
		// At the difficulty floor the counter keeps climbing past the
		// budget instead of resetting, so the search cannot revisit the
		// same failing nonces forever.
		for attempts < m.attemptBudget || difficulty == 1 {
			hash := PowHash(base, nonce)
			if MeetsDifficulty(hash, difficulty) {
				b.Nonce = nonce
				b.Hash = hash
				return nonce, hash
			}
			nonce++
			attempts++
		}
		log.Printf("[mining] no nonce within %d attempts at difficulty %d, relaxing to %d", m.attemptBudget, difficulty, difficulty-1)
		difficulty--
	}
}
