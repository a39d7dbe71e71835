package mempool

import (
	"time"
)

// Transaction is a pending ledger entry awaiting inclusion in a block.
type Transaction struct {
	TxID       string    `json:"txId"`             // Unique transaction identifier
	Payload    []byte    `json:"payload"`          // Opaque transaction payload
	Fee        float64   `json:"fee"`              // Offered fee, non-negative
	SizeBytes  int       `json:"sizeBytes"`        // Declared payload size
	Sender     string    `json:"sender,omitempty"` // (optional) sender identifier
	AdmittedAt time.Time `json:"admittedAt"`
}

// feeDensity is fee per byte, the base of the priority score.
func (tx Transaction) feeDensity() float64 {
	if tx.SizeBytes <= 0 {
		return 0
	}
	return tx.Fee / float64(tx.SizeBytes)
}

// PriorityAt scores the transaction at the given instant. Higher is better.
// The score is monotonically non-decreasing in fee density and in age; the
// exact blend is a policy knob, not a protocol invariant.
func (tx Transaction) PriorityAt(now time.Time, ageBonusPerMinute float64) float64 {
	age := now.Sub(tx.AdmittedAt)
	if age < 0 {
		age = 0
	}
	return tx.feeDensity() + ageBonusPerMinute*age.Minutes()
}

// Stats summarizes the pool's working set for the status surface.
type Stats struct {
	PendingCount   int     `json:"pendingCount"`
	TotalFees      float64 `json:"totalFees"`
	AverageFee     float64 `json:"averageFee"`
	TotalSizeBytes int     `json:"totalSizeBytes"`
}
