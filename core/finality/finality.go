package finality

import (
	"time"
)

// Status is the terminal tag of a finality outcome.
type Status string

const (
	StatusFinalized      Status = "finalized"
	StatusRejectedLayer1 Status = "rejected-layer1"
	StatusRejectedLayer2 Status = "rejected-layer2"
)

// Outcome is the result of one finalization attempt. It is immutable once
// produced; rejection is a first-class value, not an error.
type Outcome struct {
	Status         Status        `json:"status"`
	QuorumAchieved int           `json:"quorumAchieved"`
	QuorumRequired int           `json:"quorumRequired"`
	ThreatFactor   float64       `json:"threatFactor"`
	Reason         string        `json:"reason,omitempty"` // set on rejection
	Elapsed        time.Duration `json:"elapsed"`
}

// Finalized reports whether the attempt reached finality.
func (o Outcome) Finalized() bool {
	return o.Status == StatusFinalized
}

// Record is the finalized-block shape appended to the ledger sink.
type Record struct {
	Index            uint64 `json:"index"`
	Hash             string `json:"hash"`
	PrevHash         string `json:"prevHash"`
	MerkleRoot       string `json:"merkleRoot"`
	Nonce            uint64 `json:"nonce"`
	Difficulty       int    `json:"difficulty"`
	TransactionCount int    `json:"transactionCount"`
}

// LedgerSink is the external durable store for finalized blocks. The core
// only appends; replication and compaction belong to the collaborator.
type LedgerSink interface {
	Append(rec Record) error
	Has(hash string) (bool, error)
}
