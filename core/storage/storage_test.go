package storage

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelchain/core/finality"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func record(index uint64, hash string) finality.Record {
	prev := "0000"
	if index > 0 {
		prev = "prev"
	}
	return finality.Record{
		Index:            index,
		Hash:             hash,
		PrevHash:         prev,
		MerkleRoot:       "root",
		Nonce:            42,
		Difficulty:       2,
		TransactionCount: 3,
	}
}

func TestAppendAndGet(t *testing.T) {
	l := openTestLedger(t)
	require.NoError(t, l.Append(record(0, "aaa")))

	exists, err := l.Has("aaa")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := l.GetByHash("aaa")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Index)
	assert.Equal(t, "root", got.MerkleRoot)
	assert.Equal(t, uint64(42), got.Nonce)

	byIndex, err := l.GetByIndex(0)
	require.NoError(t, err)
	assert.Equal(t, got, byIndex)
}

func TestAppendIsIdempotent(t *testing.T) {
	l := openTestLedger(t)
	require.NoError(t, l.Append(record(0, "aaa")))
	require.NoError(t, l.Append(record(0, "aaa")))

	height, err := l.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, height)
}

func TestAppendRejectsMissingHash(t *testing.T) {
	l := openTestLedger(t)
	rec := record(0, "")
	assert.Error(t, l.Append(rec))
}

func TestLatestAndChainHeight(t *testing.T) {
	l := openTestLedger(t)
	_, err := l.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, l.Append(record(0, "aaa")))
	require.NoError(t, l.Append(record(1, "bbb")))

	latest, err := l.Latest()
	require.NoError(t, err)
	assert.Equal(t, "bbb", latest.Hash)

	height, err := l.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, 2, height)
}

func TestGetMissing(t *testing.T) {
	l := openTestLedger(t)
	_, err := l.GetByHash("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.GetByIndex(9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecent(t *testing.T) {
	l := openTestLedger(t)
	require.NoError(t, l.Append(record(0, "aaa")))
	require.NoError(t, l.Append(record(1, "bbb")))
	require.NoError(t, l.Append(record(2, "ccc")))

	recent, err := l.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ccc", recent[0].Hash)
	assert.Equal(t, "bbb", recent[1].Hash)
}

func TestEncryptedRoundTrip(t *testing.T) {
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)
	t.Setenv(DEKEnvVar, base64.StdEncoding.EncodeToString(dek))

	l := openTestLedger(t)
	require.NoError(t, l.Append(record(0, "aaa")))

	got, err := l.GetByHash("aaa")
	require.NoError(t, err)
	assert.Equal(t, "root", got.MerkleRoot)
}

func TestBadDEKRejectedAtOpen(t *testing.T) {
	t.Setenv(DEKEnvVar, "too-short")
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}
