package mempool

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MinFee:            0.01,
		MaxTxSize:         1024,
		Capacity:          100,
		AgeBonusPerMinute: 0.001,
	}
}

func validTx(fee float64) Transaction {
	return Transaction{
		Payload:   []byte(`{"op":"grant"}`),
		Fee:       fee,
		SizeBytes: 64,
	}
}

func TestAdmitValidTransaction(t *testing.T) {
	mp := New(testConfig())
	tx, err := mp.Admit(validTx(0.5))
	require.NoError(t, err)
	assert.NotEmpty(t, tx.TxID)
	assert.False(t, tx.AdmittedAt.IsZero())

	selected := mp.Select(10)
	require.Len(t, selected, 1)
	assert.Equal(t, tx.TxID, selected[0].TxID)
}

func TestAdmitRejectsLowFee(t *testing.T) {
	mp := New(testConfig())
	_, err := mp.Admit(validTx(0.001))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFeeTooLow))
	assert.Equal(t, 0, mp.Stats().PendingCount)
}

func TestAdmitRejectsInvalidSize(t *testing.T) {
	mp := New(testConfig())
	for _, size := range []int{0, -5, 2048} {
		tx := validTx(0.5)
		tx.SizeBytes = size
		_, err := mp.Admit(tx)
		require.Error(t, err, "size %d", size)
		assert.True(t, errors.Is(err, ErrInvalidSize))
	}
	assert.Equal(t, 0, mp.Stats().PendingCount)
}

func TestAdmitRejectsEmptyPayload(t *testing.T) {
	mp := New(testConfig())
	tx := validTx(0.5)
	tx.Payload = nil
	_, err := mp.Admit(tx)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

type rejectAllValidator struct{}

func (rejectAllValidator) Validate([]byte) error { return errors.New("schema mismatch") }

func TestAdmitRunsPayloadValidator(t *testing.T) {
	mp := New(testConfig()).WithPayloadValidator(rejectAllValidator{})
	_, err := mp.Admit(validTx(0.5))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestDuplicateAdmitIsRetrySafe(t *testing.T) {
	mp := New(testConfig())
	tx := validTx(0.5)
	tx.TxID = "tx-1"
	first, err := mp.Admit(tx)
	require.NoError(t, err)

	again, err := mp.Admit(tx)
	require.NoError(t, err)
	assert.Equal(t, first.AdmittedAt, again.AdmittedAt)
	assert.Equal(t, 1, mp.Stats().PendingCount)
}

func TestSelectOrdersByFeeDensity(t *testing.T) {
	mp := New(testConfig())
	// Same size and age: the higher fee must never rank below the lower.
	low := validTx(0.1)
	low.TxID = "low"
	high := validTx(0.9)
	high.TxID = "high"
	_, err := mp.Admit(low)
	require.NoError(t, err)
	_, err = mp.Admit(high)
	require.NoError(t, err)

	selected := mp.Select(2)
	require.Len(t, selected, 2)
	assert.Equal(t, "high", selected[0].TxID)
	assert.Equal(t, "low", selected[1].TxID)
}

func TestSelectBreaksTiesByAdmissionTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mp := New(testConfig()).WithClock(clock)

	first := validTx(0.5)
	first.TxID = "first"
	_, err := mp.Admit(first)
	require.NoError(t, err)

	now = now.Add(time.Second)
	second := validTx(0.5)
	second.TxID = "second"
	_, err = mp.Admit(second)
	require.NoError(t, err)

	selected := mp.Select(2)
	require.Len(t, selected, 2)
	assert.Equal(t, "first", selected[0].TxID)
}

func TestSelectHonorsLimit(t *testing.T) {
	mp := New(testConfig())
	for i := 0; i < 5; i++ {
		tx := validTx(0.5)
		tx.TxID = fmt.Sprintf("tx-%d", i)
		_, err := mp.Admit(tx)
		require.NoError(t, err)
	}
	assert.Len(t, mp.Select(3), 3)
}

func TestEvictRespectsMaxAge(t *testing.T) {
	admitted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := admitted
	mp := New(testConfig()).WithClock(func() time.Time { return now })

	tx := validTx(0.5)
	tx.TxID = "aging"
	_, err := mp.Admit(tx)
	require.NoError(t, err)

	now = admitted.Add(23 * time.Hour)
	assert.Equal(t, 0, mp.Evict(24*time.Hour))
	_, present := mp.Get("aging")
	assert.True(t, present, "transaction younger than max age must survive")

	now = admitted.Add(25 * time.Hour)
	assert.Equal(t, 1, mp.Evict(24*time.Hour))
	_, present = mp.Get("aging")
	assert.False(t, present)

	archived, ok := mp.ExpiredPool.Get("aging")
	require.True(t, ok)
	assert.Equal(t, "timeout", archived.Reason)
}

func TestResubmissionOfEvictedTxIsTracked(t *testing.T) {
	admitted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := admitted
	mp := New(testConfig()).WithClock(func() time.Time { return now })

	tx := validTx(0.5)
	tx.TxID = "revived"
	_, err := mp.Admit(tx)
	require.NoError(t, err)

	now = admitted.Add(25 * time.Hour)
	require.Equal(t, 1, mp.Evict(24*time.Hour))

	_, err = mp.Admit(tx)
	require.NoError(t, err)
	archived, ok := mp.ExpiredPool.Get("revived")
	require.True(t, ok)
	assert.Equal(t, 1, archived.ResubmitCount)
	assert.Equal(t, []string{"revived"}, archived.ResubmissionTxIDs)
	assert.Empty(t, archived.LastError)
}

func TestFailedResubmissionRecordsLastError(t *testing.T) {
	admitted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := admitted
	mp := New(testConfig()).WithClock(func() time.Time { return now })

	tx := validTx(0.5)
	tx.TxID = "revived"
	_, err := mp.Admit(tx)
	require.NoError(t, err)

	now = admitted.Add(25 * time.Hour)
	require.Equal(t, 1, mp.Evict(24*time.Hour))

	bad := tx
	bad.Fee = 0.0001
	_, err = mp.Admit(bad)
	require.Error(t, err)
	archived, ok := mp.ExpiredPool.Get("revived")
	require.True(t, ok)
	assert.Equal(t, 1, archived.ResubmitCount)
	assert.Contains(t, archived.LastError, "fee-too-low")
}

func TestCapacityEvictsLowestPriority(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 2
	mp := New(cfg)

	cheap := validTx(0.1)
	cheap.TxID = "cheap"
	mid := validTx(0.5)
	mid.TxID = "mid"
	rich := validTx(0.9)
	rich.TxID = "rich"

	_, err := mp.Admit(cheap)
	require.NoError(t, err)
	_, err = mp.Admit(mid)
	require.NoError(t, err)
	_, err = mp.Admit(rich)
	require.NoError(t, err)

	_, present := mp.Get("cheap")
	assert.False(t, present, "lowest-priority entry should be evicted at capacity")
	archived, ok := mp.ExpiredPool.Get("cheap")
	require.True(t, ok)
	assert.Equal(t, "capacity", archived.Reason)
}

func TestStats(t *testing.T) {
	mp := New(testConfig())
	_, err := mp.Admit(validTx(0.2))
	require.NoError(t, err)
	_, err = mp.Admit(validTx(0.4))
	require.NoError(t, err)

	s := mp.Stats()
	assert.Equal(t, 2, s.PendingCount)
	assert.InDelta(t, 0.6, s.TotalFees, 1e-9)
	assert.InDelta(t, 0.3, s.AverageFee, 1e-9)
	assert.Equal(t, 128, s.TotalSizeBytes)
}

func TestRemoveAfterFinalization(t *testing.T) {
	mp := New(testConfig())
	a := validTx(0.5)
	a.TxID = "a"
	b := validTx(0.5)
	b.TxID = "b"
	_, err := mp.Admit(a)
	require.NoError(t, err)
	_, err = mp.Admit(b)
	require.NoError(t, err)

	mp.Remove([]string{"a"})
	_, present := mp.Get("a")
	assert.False(t, present)
	_, present = mp.Get("b")
	assert.True(t, present)
}
