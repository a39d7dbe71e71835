package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"

	"sentinelchain/core/finality"
)

// Ledger is the LevelDB-backed append-only store for finalized blocks. It
// implements finality.LedgerSink. Each append writes the record under its
// hash plus an index entry in a single batch, so the height index can never
// point at a missing block.
type Ledger struct {
	db     *leveldb.DB
	cipher *cipher
}

var ErrNotFound = errors.New("block not found in ledger")

const (
	blockKeyPrefix = "block:"
	indexKeyPrefix = "index:"
	latestKey      = "latest"
)

// Open opens (or creates) a ledger at the given path. At-rest encryption is
// enabled when SENTINEL_DEK is set in the environment.
func Open(path string) (*Ledger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	ciph, err := newCipherFromEnv()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, cipher: ciph}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append durably stores a finalized block record. Appending a hash that is
// already present is a no-op, which keeps retried finalizations safe.
func (l *Ledger) Append(rec finality.Record) error {
	if rec.Hash == "" {
		return errors.New("record has no hash")
	}
	exists, err := l.Has(rec.Hash)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	enc, err := l.cipher.seal(data)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(blockKeyPrefix+rec.Hash), enc)
	batch.Put([]byte(fmt.Sprintf("%s%d", indexKeyPrefix, rec.Index)), []byte(rec.Hash))
	batch.Put([]byte(latestKey), []byte(rec.Hash))
	return l.db.Write(batch, nil)
}

// Has reports whether a block hash is already in the ledger.
func (l *Ledger) Has(hash string) (bool, error) {
	ok, err := l.db.Has([]byte(blockKeyPrefix+hash), nil)
	if err != nil && err != lerrors.ErrNotFound {
		return false, err
	}
	return ok, nil
}

// GetByHash retrieves a finalized record by block hash.
func (l *Ledger) GetByHash(hash string) (finality.Record, error) {
	var rec finality.Record
	enc, err := l.db.Get([]byte(blockKeyPrefix+hash), nil)
	if err == lerrors.ErrNotFound {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	data, err := l.cipher.open(enc)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}

// GetByIndex uses the height index for O(1) lookup.
func (l *Ledger) GetByIndex(index uint64) (finality.Record, error) {
	hash, err := l.db.Get([]byte(fmt.Sprintf("%s%d", indexKeyPrefix, index)), nil)
	if err == lerrors.ErrNotFound {
		return finality.Record{}, ErrNotFound
	}
	if err != nil {
		return finality.Record{}, err
	}
	return l.GetByHash(string(hash))
}

// Latest returns the most recently appended record.
func (l *Ledger) Latest() (finality.Record, error) {
	hash, err := l.db.Get([]byte(latestKey), nil)
	if err == lerrors.ErrNotFound {
		return finality.Record{}, ErrNotFound
	}
	if err != nil {
		return finality.Record{}, err
	}
	return l.GetByHash(string(hash))
}

// ChainHeight counts the finalized blocks in the ledger.
func (l *Ledger) ChainHeight() (int, error) {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	height := 0
	for iter.Next() {
		if len(iter.Key()) > len(blockKeyPrefix) && string(iter.Key()[:len(blockKeyPrefix)]) == blockKeyPrefix {
			height++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	return height, nil
}

// ListRecent returns summaries of up to max recent blocks, newest first,
// walking the height index down from the latest record.
func (l *Ledger) ListRecent(max int) ([]finality.Record, error) {
	latest, err := l.Latest()
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []finality.Record
	idx := latest.Index
	for len(out) < max {
		rec, err := l.GetByIndex(idx)
		if err == ErrNotFound {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		if idx == 0 {
			break
		}
		idx--
	}
	return out, nil
}
