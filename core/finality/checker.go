package finality

import (
	"fmt"
	"sync"
	"time"

	"sentinelchain/core/audit"
	"sentinelchain/core/block"
	"sentinelchain/core/mempool"
	"sentinelchain/core/mining"
	"sentinelchain/core/quorum"
	"sentinelchain/core/threat"
)

// Checker is the two-layer finality decision point. Layer 1 re-validates
// the proof-of-work from the recorded nonce and difficulty; layer 2 counts
// deduplicated validator signatures against an adaptive quorum threshold
// derived from the live threat level.
//
// The miner and the checker may sit in different trust domains, so the
// miner's own hash claim is never trusted: validation always recomputes.
type Checker struct {
	sink       LedgerSink
	collector  *quorum.Collector
	threats    *threat.Adapter
	pool       *mempool.Mempool
	validators int
	auditLog   audit.AuditLogger
	clock      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-block evaluation locks
}

// NewChecker wires the checker to its collaborators. validators is the
// total size of the validator set the quorum is measured against.
func NewChecker(sink LedgerSink, collector *quorum.Collector, threats *threat.Adapter, validators int) *Checker {
	return &Checker{
		sink:       sink,
		collector:  collector,
		threats:    threats,
		validators: validators,
		auditLog:   audit.NopAuditLogger{},
		clock:      time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// WithMempool lets the checker remove a finalized block's transactions from
// the pool. Removal happens only after the ledger append succeeds.
func (c *Checker) WithMempool(pool *mempool.Mempool) *Checker {
	c.pool = pool
	return c
}

// WithAuditLogger installs an audit sink for finality decisions.
func (c *Checker) WithAuditLogger(logger audit.AuditLogger) *Checker {
	if logger != nil {
		c.auditLog = logger
	}
	return c
}

// evalLock returns the evaluation lock for a block identifier, creating it
// on first use. At most one finalization may be in flight per block.
func (c *Checker) evalLock(blockKey string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[blockKey]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[blockKey] = lock
	}
	return lock
}

// dropLock releases the map entry once a block reaches a terminal state.
// A late evaluator that still holds the old mutex lands on the idempotent
// already-finalized path, so losing the entry is safe.
func (c *Checker) dropLock(blockKey string) {
	c.mu.Lock()
	delete(c.locks, blockKey)
	c.mu.Unlock()
}

// Finalize evaluates both layers for the block and appends it to the ledger
// sink on success. The returned error is non-nil only when the sink append
// fails; every protocol-level rejection is expressed in the Outcome.
//
// Finalization is idempotent: a block already present in the sink reports
// finalized again without a double append, and the per-block lock keeps two
// concurrent evaluations from both observing quorum.
func (c *Checker) Finalize(b *block.Block) (Outcome, error) {
	start := c.clock()

	key := b.SigningDigest().String()
	lock := c.evalLock(key)
	lock.Lock()
	defer lock.Unlock()

	if b.Hash != "" {
		if exists, err := c.sink.Has(b.Hash); err == nil && exists {
			// A prior attempt may have appended and then crashed before the
			// mempool removal, so the removal runs on this path too.
			if c.pool != nil {
				c.pool.Remove(b.TxIDs())
			}
			c.dropLock(key)
			return Outcome{
				Status:  StatusFinalized,
				Reason:  "already-finalized",
				Elapsed: c.clock().Sub(start),
			}, nil
		}
	}

	// Layer 1: recompute the proof-of-work, never trust the miner's claim.
	if !mining.ValidatePoW(b) {
		outcome := Outcome{
			Status:  StatusRejectedLayer1,
			Reason:  "pow-invalid",
			Elapsed: c.clock().Sub(start),
		}
		c.auditDecision(b, outcome)
		return outcome, nil
	}

	// Layer 2: adaptive signature quorum.
	level := c.threats.Current()
	required := threat.QuorumRequired(c.validators, level.Factor)
	achieved := c.collector.ValidCount(b)
	if achieved < required {
		outcome := Outcome{
			Status:         StatusRejectedLayer2,
			QuorumAchieved: achieved,
			QuorumRequired: required,
			ThreatFactor:   level.Factor,
			Reason:         fmt.Sprintf("quorum-insufficient: %d/%d valid signatures", achieved, required),
			Elapsed:        c.clock().Sub(start),
		}
		c.auditDecision(b, outcome)
		return outcome, nil
	}

	rec := Record{
		Index:            b.Height,
		Hash:             b.Hash,
		PrevHash:         b.PrevHash,
		MerkleRoot:       b.MerkleRoot,
		Nonce:            b.Nonce,
		Difficulty:       b.Difficulty,
		TransactionCount: len(b.Transactions),
	}
	if err := c.sink.Append(rec); err != nil {
		// The only fatal path. The mempool keeps the block's transactions
		// so a retried finalization stays safe.
		c.auditLog.LogEvent(audit.AuditEvent{
			Timestamp: c.clock().UTC(),
			EventType: audit.EventLedgerAppendFailed,
			EntityID:  b.Hash,
			Result:    "error",
			Reason:    err.Error(),
		})
		return Outcome{}, fmt.Errorf("ledger append: %w", err)
	}

	if c.pool != nil {
		c.pool.Remove(b.TxIDs())
	}
	c.dropLock(key)

	outcome := Outcome{
		Status:         StatusFinalized,
		QuorumAchieved: achieved,
		QuorumRequired: required,
		ThreatFactor:   level.Factor,
		Elapsed:        c.clock().Sub(start),
	}
	c.auditDecision(b, outcome)
	return outcome, nil
}

func (c *Checker) auditDecision(b *block.Block, outcome Outcome) {
	c.auditLog.LogEvent(audit.AuditEvent{
		Timestamp: c.clock().UTC(),
		EventType: audit.EventFinalityDecision,
		EntityID:  b.Hash,
		Result:    string(outcome.Status),
		Reason:    outcome.Reason,
		Metadata: map[string]string{
			"height":         fmt.Sprintf("%d", b.Height),
			"quorumAchieved": fmt.Sprintf("%d", outcome.QuorumAchieved),
			"quorumRequired": fmt.Sprintf("%d", outcome.QuorumRequired),
			"threatFactor":   fmt.Sprintf("%.4f", outcome.ThreatFactor),
		},
	})
}
