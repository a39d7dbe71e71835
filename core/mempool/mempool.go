package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Admission rejection reasons. Rejected transactions are never stored, so a
// corrected resubmission is always safe.
var (
	ErrMalformedPayload = errors.New("malformed-payload")
	ErrFeeTooLow        = errors.New("fee-too-low")
	ErrInvalidSize      = errors.New("invalid-size")
)

// PayloadValidator optionally checks payload structure at admission.
type PayloadValidator interface {
	Validate(payload []byte) error
}

// Config carries the pool's admission and ranking policy.
type Config struct {
	MinFee            float64
	MaxTxSize         int
	Capacity          int     // max transactions held; 0 means unbounded
	AgeBonusPerMinute float64 // linear age bonus added to fee density
}

// Mempool is the admission-controlled priority pool of pending transactions.
// A single mutex serializes admission, selection, and removal.
type Mempool struct {
	mu          sync.Mutex
	cfg         Config
	txs         map[string]Transaction // TxID -> Transaction
	validator   PayloadValidator
	newID       func() string
	clock       func() time.Time
	ExpiredPool *ExpiredTxPool // Archive for evicted transactions
}

// New creates a mempool with the given policy. IDs come from uuid unless
// overridden via WithIDGenerator.
func New(cfg Config) *Mempool {
	return &Mempool{
		cfg:         cfg,
		txs:         make(map[string]Transaction),
		newID:       uuid.NewString,
		clock:       time.Now,
		ExpiredPool: NewExpiredTxPool(),
	}
}

// WithPayloadValidator installs a payload structure check run at admission.
func (mp *Mempool) WithPayloadValidator(v PayloadValidator) *Mempool {
	mp.validator = v
	return mp
}

// WithIDGenerator overrides transaction ID generation (deterministic tests).
func (mp *Mempool) WithIDGenerator(gen func() string) *Mempool {
	mp.newID = gen
	return mp
}

// WithClock overrides the pool's clock (deterministic tests).
func (mp *Mempool) WithClock(clock func() time.Time) *Mempool {
	mp.clock = clock
	return mp
}

// Admit validates and stores a transaction. Validation short-circuits in
// order: payload present, fee floor, size bounds. Re-admitting an already
// pending TxID is a no-op. The admitted transaction (with assigned ID and
// admission time) is returned on success.
//
// A TxID that was previously evicted gets its resubmission tracked in the
// expired-tx archive, including the error when the retry fails admission.
func (mp *Mempool) Admit(tx Transaction) (Transaction, error) {
	admitted, err := mp.admit(tx)
	mp.recordResubmission(tx.TxID, err)
	return admitted, err
}

func (mp *Mempool) admit(tx Transaction) (Transaction, error) {
	if len(tx.Payload) == 0 {
		return Transaction{}, ErrMalformedPayload
	}
	if mp.validator != nil {
		if err := mp.validator.Validate(tx.Payload); err != nil {
			return Transaction{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	if tx.Fee < mp.cfg.MinFee {
		return Transaction{}, fmt.Errorf("%w: fee %.6f below minimum %.6f", ErrFeeTooLow, tx.Fee, mp.cfg.MinFee)
	}
	if tx.SizeBytes <= 0 || tx.SizeBytes > mp.cfg.MaxTxSize {
		return Transaction{}, fmt.Errorf("%w: size %d outside (0, %d]", ErrInvalidSize, tx.SizeBytes, mp.cfg.MaxTxSize)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if tx.TxID == "" {
		tx.TxID = mp.newID()
	}
	if existing, exists := mp.txs[tx.TxID]; exists {
		return existing, nil // duplicate, admission is retry-safe
	}
	tx.AdmittedAt = mp.clock().UTC()

	if mp.cfg.Capacity > 0 && len(mp.txs) >= mp.cfg.Capacity {
		mp.evictLowestLocked()
	}
	mp.txs[tx.TxID] = tx
	return tx, nil
}

// evictLowestLocked drops the lowest-priority transaction to make room,
// archiving it. Caller holds mp.mu.
func (mp *Mempool) evictLowestLocked() {
	now := mp.clock()
	lowestID := ""
	lowest := 0.0
	for id, tx := range mp.txs {
		p := tx.PriorityAt(now, mp.cfg.AgeBonusPerMinute)
		if lowestID == "" || p < lowest {
			lowestID, lowest = id, p
		}
	}
	if lowestID != "" {
		mp.archiveLocked(mp.txs[lowestID], "capacity")
		delete(mp.txs, lowestID)
	}
}

// Select returns up to limit transactions, highest priority first, ties
// broken by earlier admission time. Scores are recomputed at call time so
// the age bonus stays live.
func (mp *Mempool) Select(limit int) []Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	now := mp.clock()
	out := make([]Transaction, 0, len(mp.txs))
	for _, tx := range mp.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		pi := out[i].PriorityAt(now, mp.cfg.AgeBonusPerMinute)
		pj := out[j].PriorityAt(now, mp.cfg.AgeBonusPerMinute)
		if pi == pj {
			return out[i].AdmittedAt.Before(out[j].AdmittedAt)
		}
		return pi > pj
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Remove drops the given transactions, typically after block finalization.
func (mp *Mempool) Remove(txIDs []string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, id := range txIDs {
		delete(mp.txs, id)
	}
}

// Get returns a pending transaction by ID.
func (mp *Mempool) Get(txID string) (Transaction, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	tx, ok := mp.txs[txID]
	return tx, ok
}

// Evict archives every transaction older than maxAge. Transactions younger
// than maxAge are never touched.
func (mp *Mempool) Evict(maxAge time.Duration) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	now := mp.clock()
	evicted := 0
	for id, tx := range mp.txs {
		if now.Sub(tx.AdmittedAt) > maxAge {
			mp.archiveLocked(tx, "timeout")
			delete(mp.txs, id)
			evicted++
		}
	}
	return evicted
}

// recordResubmission notes an evicted TxID coming back through Admit.
func (mp *Mempool) recordResubmission(txID string, admitErr error) {
	if txID == "" || mp.ExpiredPool == nil {
		return
	}
	archived, ok := mp.ExpiredPool.Get(txID)
	if !ok {
		return
	}
	archived.ResubmitCount++
	archived.ResubmissionTxIDs = append(archived.ResubmissionTxIDs, txID)
	archived.LastError = ""
	if admitErr != nil {
		archived.LastError = admitErr.Error()
	}
	mp.ExpiredPool.Add(archived)
}

// archiveLocked moves a transaction to the expired pool. Caller holds mp.mu.
func (mp *Mempool) archiveLocked(tx Transaction, reason string) {
	if mp.ExpiredPool == nil {
		return
	}
	if existing, ok := mp.ExpiredPool.Get(tx.TxID); ok {
		existing.ExpiredAt = mp.clock()
		existing.Reason = reason
		mp.ExpiredPool.Add(existing)
		return
	}
	mp.ExpiredPool.Add(ExpiredTx{
		TxID:      tx.TxID,
		Payload:   tx.Payload,
		Sender:    tx.Sender,
		ExpiredAt: mp.clock(),
		Reason:    reason,
	})
}

// Stats summarizes the pool's working set.
func (mp *Mempool) Stats() Stats {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	s := Stats{PendingCount: len(mp.txs)}
	for _, tx := range mp.txs {
		s.TotalFees += tx.Fee
		s.TotalSizeBytes += tx.SizeBytes
	}
	if s.PendingCount > 0 {
		s.AverageFee = s.TotalFees / float64(s.PendingCount)
	}
	return s
}
