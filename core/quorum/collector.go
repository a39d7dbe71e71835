package quorum

import (
	"crypto/ed25519"
	"errors"
	"sync"
	"time"

	"sentinelchain/core"
	"sentinelchain/core/block"
	"sentinelchain/types/ids"
)

// VerificationStatus tracks the cached per-signature verification result.
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	StatusValid      VerificationStatus = "valid"
	StatusInvalid    VerificationStatus = "invalid"
)

var (
	ErrInvalidSignature = errors.New("invalid-signature")
	ErrUnknownSigner    = errors.New("unknown-signer")
)

// SignatureRecord is one validator's vote over a block's signing digest.
type SignatureRecord struct {
	SignerID  string             `json:"signerId"`
	PublicKey []byte             `json:"publicKey"`
	Signature []byte             `json:"signature"`
	SignedAt  time.Time          `json:"signedAt"`
	Status    VerificationStatus `json:"status"`
}

// Collector accumulates signatures over mined blocks, keyed by the block's
// canonical signing digest. Verification itself is pure and runs outside
// the lock; the seen-signer bookkeeping is what the lock protects, so a
// signer can never be counted twice.
type Collector struct {
	mu      sync.Mutex
	byBlock map[ids.ID]map[string]SignatureRecord // digest -> signer -> record
	allowed map[string]bool                       // nil means any signer
	clock   func() time.Time
}

func NewCollector() *Collector {
	return &Collector{
		byBlock: make(map[ids.ID]map[string]SignatureRecord),
		clock:   time.Now,
	}
}

// WithValidators restricts submissions to a known signer set. Deduplication
// is by signer ID either way: a signer may rotate keys within a session and
// still counts once.
func (c *Collector) WithValidators(signerIDs []string) *Collector {
	allowed := make(map[string]bool, len(signerIDs))
	for _, id := range signerIDs {
		allowed[id] = true
	}
	c.allowed = allowed
	return c
}

// WithClock overrides the collector's clock (deterministic tests).
func (c *Collector) WithClock(clock func() time.Time) *Collector {
	c.clock = clock
	return c
}

// Submit verifies a signature against the block's signing digest and, if
// valid, records it. Invalid signatures are rejected and cached as invalid
// without poisoning the block. Resubmission by the same signer is a no-op.
func (c *Collector) Submit(b *block.Block, signerID string, pubKey ed25519.PublicKey, sig []byte) error {
	if c.allowed != nil && !c.allowed[signerID] {
		return ErrUnknownSigner
	}

	digest := b.SigningDigest()
	valid := core.Verify(pubKey, digest[:], sig)

	c.mu.Lock()
	defer c.mu.Unlock()

	records, ok := c.byBlock[digest]
	if !ok {
		records = make(map[string]SignatureRecord)
		c.byBlock[digest] = records
	}
	if prev, seen := records[signerID]; seen && prev.Status == StatusValid {
		return nil // already counted, verification is idempotent
	}

	status := StatusValid
	if !valid {
		status = StatusInvalid
	}
	records[signerID] = SignatureRecord{
		SignerID:  signerID,
		PublicKey: append([]byte(nil), pubKey...),
		Signature: append([]byte(nil), sig...),
		SignedAt:  c.clock().UTC(),
		Status:    status,
	}
	if !valid {
		return ErrInvalidSignature
	}
	return nil
}

// ValidCount returns the number of distinct signers with a valid signature
// on the block.
func (c *Collector) ValidCount(b *block.Block) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, rec := range c.byBlock[b.SigningDigest()] {
		if rec.Status == StatusValid {
			count++
		}
	}
	return count
}

// Records returns all signature records held for the block, valid or not.
func (c *Collector) Records(b *block.Block) []SignatureRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.byBlock[b.SigningDigest()]
	out := make([]SignatureRecord, 0, len(src))
	for _, rec := range src {
		out = append(out, rec)
	}
	return out
}

// Forget drops all records for a block, once it is finalized or abandoned.
func (c *Collector) Forget(b *block.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byBlock, b.SigningDigest())
}
