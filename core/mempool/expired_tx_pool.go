package mempool

import (
	"sync"
	"time"
)

// ExpiredTx is a transaction evicted from the mempool, kept for later
// inspection or resubmission by the surrounding product.
type ExpiredTx struct {
	TxID              string
	Payload           []byte
	Sender            string
	ExpiredAt         time.Time
	Reason            string // "timeout" or "capacity"
	ResubmitCount     int
	ResubmissionTxIDs []string
	LastError         string
}

// ExpiredTxPool is a thread-safe in-memory archive of evicted transactions.
type ExpiredTxPool struct {
	pool map[string]ExpiredTx
	lock sync.RWMutex
}

func NewExpiredTxPool() *ExpiredTxPool {
	return &ExpiredTxPool{
		pool: make(map[string]ExpiredTx),
	}
}

// Add stores an evicted transaction, replacing any prior entry.
func (e *ExpiredTxPool) Add(tx ExpiredTx) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.pool[tx.TxID] = tx
}

// Get retrieves an evicted transaction by TxID.
func (e *ExpiredTxPool) Get(txID string) (ExpiredTx, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	tx, ok := e.pool[txID]
	return tx, ok
}

// List returns all evicted transactions.
func (e *ExpiredTxPool) List() []ExpiredTx {
	e.lock.RLock()
	defer e.lock.RUnlock()
	txs := make([]ExpiredTx, 0, len(e.pool))
	for _, tx := range e.pool {
		txs = append(txs, tx)
	}
	return txs
}
