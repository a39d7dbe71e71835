package finality

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "sentinelchain/core"
	"sentinelchain/core/block"
	"sentinelchain/core/mempool"
	"sentinelchain/core/mining"
	"sentinelchain/core/quorum"
	"sentinelchain/core/threat"
)

// memorySink is an in-memory LedgerSink with a switchable failure mode.
type memorySink struct {
	mu      sync.Mutex
	byHash  map[string]Record
	appends int
	fail    bool
}

func newMemorySink() *memorySink {
	return &memorySink{byHash: make(map[string]Record)}
}

func (s *memorySink) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	if _, ok := s.byHash[rec.Hash]; ok {
		return nil
	}
	s.byHash[rec.Hash] = rec
	s.appends++
	return nil
}

func (s *memorySink) Has(hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byHash[hash]
	return ok, nil
}

type staticAlerts struct {
	counts threat.Counts
}

func (s staticAlerts) Counts(time.Duration) (threat.Counts, error) {
	return s.counts, nil
}

type validatorKey struct {
	id   string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

type fixture struct {
	sink       *memorySink
	collector  *quorum.Collector
	checker    *Checker
	pool       *mempool.Mempool
	validators []validatorKey
	block      *block.Block
}

// newFixture mines a candidate over admitted transactions and wires a
// checker with three validators at the quiet threat floor (factor 0.51,
// quorum 2 of 3).
func newFixture(t *testing.T, counts threat.Counts) *fixture {
	t.Helper()

	pool := mempool.New(mempool.Config{MinFee: 0.01, MaxTxSize: 1024})
	var txs []mempool.Transaction
	for _, id := range []string{"tx-1", "tx-2"} {
		tx, err := pool.Admit(mempool.Transaction{TxID: id, Payload: []byte("{}"), Fee: 0.5, SizeBytes: 64})
		require.NoError(t, err)
		txs = append(txs, tx)
	}

	b, err := block.NewAssembler().Build(nil, txs, nil, 1)
	require.NoError(t, err)
	mining.NewMiner().Mine(b)

	validators := make([]validatorKey, 3)
	ids := make([]string, 3)
	for i, id := range []string{"val-1", "val-2", "val-3"} {
		pub, priv, err := core.GenerateKeypair()
		require.NoError(t, err)
		validators[i] = validatorKey{id: id, pub: pub, priv: priv}
		ids[i] = id
	}

	sink := newMemorySink()
	collector := quorum.NewCollector().WithValidators(ids)
	checker := NewChecker(sink, collector, threat.NewAdapter(staticAlerts{counts: counts}), 3).
		WithMempool(pool)

	return &fixture{
		sink:       sink,
		collector:  collector,
		checker:    checker,
		pool:       pool,
		validators: validators,
		block:      b,
	}
}

func (f *fixture) sign(t *testing.T, n int) {
	t.Helper()
	digest := f.block.SigningDigest()
	for _, v := range f.validators[:n] {
		require.NoError(t, f.collector.Submit(f.block, v.id, v.pub, ed25519.Sign(v.priv, digest[:])))
	}
}

func TestFinalizeReachesQuorum(t *testing.T) {
	// Scenario: 3 validators at factor 0.51 -> quorum required = 2.
	f := newFixture(t, threat.Counts{})
	f.sign(t, 2)

	outcome, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
	assert.True(t, outcome.Finalized())
	assert.Equal(t, 2, outcome.QuorumAchieved)
	assert.Equal(t, 2, outcome.QuorumRequired)
	assert.InDelta(t, 0.51, outcome.ThreatFactor, 1e-9)
	assert.GreaterOrEqual(t, outcome.Elapsed, time.Duration(0))

	exists, err := f.sink.Has(f.block.Hash)
	require.NoError(t, err)
	assert.True(t, exists)

	_, present := f.pool.Get("tx-1")
	assert.False(t, present, "finalized transactions leave the mempool")
}

func TestFinalizeRejectsInsufficientQuorum(t *testing.T) {
	f := newFixture(t, threat.Counts{})
	f.sign(t, 1)

	outcome, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusRejectedLayer2, outcome.Status)
	assert.Contains(t, outcome.Reason, "1/2")
	assert.Equal(t, 1, outcome.QuorumAchieved)
	assert.Equal(t, 2, outcome.QuorumRequired)

	exists, err := f.sink.Has(f.block.Hash)
	require.NoError(t, err)
	assert.False(t, exists)
	_, present := f.pool.Get("tx-1")
	assert.True(t, present, "rejected blocks keep their transactions pending")
}

func TestFinalizeRejectsTamperedPayload(t *testing.T) {
	f := newFixture(t, threat.Counts{})
	f.sign(t, 3)

	// Quorum is satisfied, but the payload changed after mining.
	f.block.Transactions[0].Fee = 999

	outcome, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusRejectedLayer1, outcome.Status)
	assert.Equal(t, "pow-invalid", outcome.Reason)

	exists, err := f.sink.Has(f.block.Hash)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestElevatedThreatRaisesQuorum(t *testing.T) {
	// 3 criticals -> raw 0.45 -> factor 0.6855 -> ceil(3*0.6855) = 3.
	f := newFixture(t, threat.Counts{CriticalAlerts: 3})
	f.sign(t, 2)

	outcome, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusRejectedLayer2, outcome.Status)
	assert.Equal(t, 3, outcome.QuorumRequired)

	f.sign(t, 3)
	outcome, err = f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
}

func TestLedgerAppendFailureIsFatalAndRetrySafe(t *testing.T) {
	f := newFixture(t, threat.Counts{})
	f.sign(t, 2)

	f.sink.fail = true
	_, err := f.checker.Finalize(f.block)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ledger append"))
	_, present := f.pool.Get("tx-1")
	assert.True(t, present, "append failure must not drop mempool transactions")

	// Once the sink recovers, the same attempt goes through.
	f.sink.fail = false
	outcome, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
	_, present = f.pool.Get("tx-1")
	assert.False(t, present)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t, threat.Counts{})
	f.sign(t, 2)

	first, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	require.Equal(t, StatusFinalized, first.Status)

	second, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, second.Status)
	assert.Equal(t, "already-finalized", second.Reason)
	assert.Equal(t, 1, f.sink.appends, "no double append")
}

func TestAlreadyFinalizedStillClearsMempool(t *testing.T) {
	// A prior attempt appended the record but died before the mempool
	// removal. The retried finalization must not strand the transactions.
	f := newFixture(t, threat.Counts{})
	f.sink.byHash[f.block.Hash] = Record{Index: f.block.Height, Hash: f.block.Hash}

	outcome, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, outcome.Status)
	assert.Equal(t, "already-finalized", outcome.Reason)

	_, present := f.pool.Get("tx-1")
	assert.False(t, present)
	_, present = f.pool.Get("tx-2")
	assert.False(t, present)
}

func TestFinalizeReleasesEvaluationLock(t *testing.T) {
	f := newFixture(t, threat.Counts{})
	f.sign(t, 2)

	_, err := f.checker.Finalize(f.block)
	require.NoError(t, err)
	f.checker.mu.Lock()
	held := len(f.checker.locks)
	f.checker.mu.Unlock()
	assert.Equal(t, 0, held, "terminal blocks must not retain an evaluation lock")

	// The idempotent retry recreates and releases the entry.
	_, err = f.checker.Finalize(f.block)
	require.NoError(t, err)
	f.checker.mu.Lock()
	held = len(f.checker.locks)
	f.checker.mu.Unlock()
	assert.Equal(t, 0, held)
}

func TestConcurrentFinalizationsAppendOnce(t *testing.T) {
	f := newFixture(t, threat.Counts{})
	f.sign(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.checker.Finalize(f.block)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.sink.appends)
}
