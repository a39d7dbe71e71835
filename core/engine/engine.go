package engine

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log"
	"sync"
	"time"

	"sentinelchain/core/block"
	"sentinelchain/core/finality"
	"sentinelchain/core/genesis"
	"sentinelchain/core/mempool"
	"sentinelchain/core/mining"
	"sentinelchain/core/quorum"
)

var ErrNoPendingBlock = errors.New("no candidate block is awaiting quorum")

// Engine composes the finality pipeline: admit -> assemble -> mine ->
// collect -> finalize. It is the explicit owner of pipeline concurrency;
// the stages themselves are synchronous.
type Engine struct {
	cfg       *genesis.ChainConfig
	pool      *mempool.Mempool
	assembler *block.Assembler
	miner     *mining.Miner
	collector *quorum.Collector
	checker   *finality.Checker

	mu        sync.Mutex
	tip       *block.Block // last finalized block, nil before genesis
	pending   *block.Block // mined candidate awaiting quorum
	proposing bool         // slot reserved while a candidate is being mined
}

func New(
	cfg *genesis.ChainConfig,
	pool *mempool.Mempool,
	miner *mining.Miner,
	collector *quorum.Collector,
	checker *finality.Checker,
) *Engine {
	return &Engine{
		cfg:       cfg,
		pool:      pool,
		assembler: block.NewAssembler(),
		miner:     miner,
		collector: collector,
		checker:   checker,
	}
}

// Bootstrap seeds the tip from a previously finalized record, so a restarted
// node keeps the height sequence gapless.
func (e *Engine) Bootstrap(latest finality.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tip = &block.Block{
		Height:     latest.Index,
		PrevHash:   latest.PrevHash,
		MerkleRoot: latest.MerkleRoot,
		Nonce:      latest.Nonce,
		Difficulty: latest.Difficulty,
		Hash:       latest.Hash,
	}
}

// SubmitTransaction admits a transaction into the mempool.
func (e *Engine) SubmitTransaction(tx mempool.Transaction) (mempool.Transaction, error) {
	return e.pool.Admit(tx)
}

// SubmitSignature routes a validator's vote to the pending candidate.
func (e *Engine) SubmitSignature(signerID string, pubKey ed25519.PublicKey, sig []byte) error {
	e.mu.Lock()
	pending := e.pending
	e.mu.Unlock()
	if pending == nil {
		return ErrNoPendingBlock
	}
	return e.collector.Submit(pending, signerID, pubKey, sig)
}

// Pending returns the candidate currently awaiting quorum, if any.
func (e *Engine) Pending() *block.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Tip returns the last finalized block, nil before genesis.
func (e *Engine) Tip() *block.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tip
}

// Stats exposes the mempool's working-set summary.
func (e *Engine) Stats() mempool.Stats {
	return e.pool.Stats()
}

// ExpiredTransactions lists transactions evicted from the mempool.
func (e *Engine) ExpiredTransactions() []mempool.ExpiredTx {
	if e.pool.ExpiredPool == nil {
		return nil
	}
	return e.pool.ExpiredPool.List()
}

// Propose selects the highest-priority batch, assembles the next candidate
// on the current tip, and mines it. The mined candidate becomes the pending
// block awaiting quorum. Proposing while a candidate is already pending is
// an error; finalize or abandon it first.
func (e *Engine) Propose() (*block.Block, error) {
	// Reserve the slot before the nonce search starts. The mutex cannot be
	// held across mining, so the reservation is what keeps two concurrent
	// proposals from both passing the pending check and the loser silently
	// orphaning the winner's candidate.
	e.mu.Lock()
	if e.pending != nil || e.proposing {
		e.mu.Unlock()
		return nil, errors.New("a candidate block is already pending")
	}
	e.proposing = true
	tip := e.tip
	e.mu.Unlock()

	candidate, err := e.buildAndMine(tip)

	e.mu.Lock()
	e.proposing = false
	if err == nil {
		e.pending = candidate
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

func (e *Engine) buildAndMine(tip *block.Block) (*block.Block, error) {
	txs := e.pool.Select(e.cfg.Params.BlockTxLimit)
	if len(txs) == 0 {
		return nil, block.ErrEmptyBatch
	}
	candidate, err := e.assembler.Build(tip, txs, map[string]string{"chainId": e.cfg.ChainID}, e.cfg.Params.InitialDifficulty)
	if err != nil {
		return nil, err
	}

	// The nonce search blocks the caller; it owns its own counter and may
	// run in parallel for independent candidates.
	nonce, hash := e.miner.Mine(candidate)
	log.Printf("[engine] mined candidate height=%d nonce=%d hash=%s difficulty=%d", candidate.Height, nonce, hash[:12], candidate.Difficulty)
	return candidate, nil
}

// TryFinalize runs the two-layer finality check on the pending candidate.
// On finality the candidate becomes the new tip and its signature records
// are released. Rejection leaves the candidate pending so callers can
// collect more signatures and retry.
func (e *Engine) TryFinalize() (finality.Outcome, error) {
	e.mu.Lock()
	pending := e.pending
	e.mu.Unlock()
	if pending == nil {
		return finality.Outcome{}, ErrNoPendingBlock
	}

	outcome, err := e.checker.Finalize(pending)
	if err != nil {
		return outcome, err
	}
	if outcome.Finalized() {
		e.mu.Lock()
		e.tip = pending
		e.pending = nil
		e.mu.Unlock()
		e.collector.Forget(pending)
	}
	return outcome, nil
}

// Abandon drops the pending candidate, returning its transactions to
// selection eligibility (they were never removed from the mempool).
func (e *Engine) Abandon() {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	if pending != nil {
		e.collector.Forget(pending)
	}
}

// Run drives the pipeline on a fixed interval until the context ends:
// evict stale transactions, propose when idle, and attempt finalization of
// the pending candidate.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	maxAge := time.Duration(e.cfg.Params.TxMaxAgeHours) * time.Hour
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.pool.Evict(maxAge); n > 0 {
				log.Printf("[engine] evicted %d stale transactions", n)
			}
			if e.Pending() == nil {
				if _, err := e.Propose(); err != nil && !errors.Is(err, block.ErrEmptyBatch) {
					log.Printf("[engine] propose failed: %v", err)
				}
				continue
			}
			outcome, err := e.TryFinalize()
			if err != nil {
				log.Printf("[engine] finalization error (will retry): %v", err)
				continue
			}
			switch outcome.Status {
			case finality.StatusFinalized:
				log.Printf("[engine] block finalized, quorum %d/%d at factor %.3f in %s",
					outcome.QuorumAchieved, outcome.QuorumRequired, outcome.ThreatFactor, outcome.Elapsed)
			case finality.StatusRejectedLayer2:
				// Keep collecting signatures; the threshold may also move
				// with the threat level.
			case finality.StatusRejectedLayer1:
				log.Printf("[engine] pending candidate failed pow re-validation, abandoning: %s", outcome.Reason)
				e.Abandon()
			}
		}
	}
}
