package block

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"

	"sentinelchain/core/mempool"
	"sentinelchain/types/ids"
)

// GenesisPrevHash is the previous-hash sentinel carried by the genesis block.
var GenesisPrevHash = strings.Repeat("0", 64)

// Block is a candidate block moving through the finality pipeline.
// The assembler creates it, the miner mutates only the nonce (and, when the
// stuck-search guard fires, the declared difficulty), and it becomes
// immutable once a finality outcome of finalized is produced.
type Block struct {
	Height       uint64                `json:"height"`
	PrevHash     string                `json:"prevHash"`
	MerkleRoot   string                `json:"merkleRoot"`
	Timestamp    time.Time             `json:"timestamp"`
	Metadata     map[string]string     `json:"metadata,omitempty"`
	Transactions []mempool.Transaction `json:"transactions"`

	// The miner owns the fields below: Nonce is its search variable,
	// Difficulty the leading zero hex digits it satisfied, and Hash is set
	// only once the search succeeds.
	Nonce      uint64 `json:"nonce"`
	Difficulty int    `json:"difficulty"`
	Hash       string `json:"hash,omitempty"`
}

// SealBase returns the canonical serialization of the block without its
// nonce and hash. The proof-of-work digest is computed over SealBase plus
// the nonce, so any payload mutation after mining invalidates the hash.
func (b *Block) SealBase() []byte {
	header := struct {
		Height       uint64                `json:"height"`
		PrevHash     string                `json:"prevHash"`
		MerkleRoot   string                `json:"merkleRoot"`
		Timestamp    time.Time             `json:"timestamp"`
		Metadata     map[string]string     `json:"metadata,omitempty"`
		Transactions []mempool.Transaction `json:"transactions"`
		Difficulty   int                   `json:"difficulty"`
	}{
		b.Height, b.PrevHash, b.MerkleRoot, b.Timestamp,
		b.Metadata, b.Transactions, b.Difficulty,
	}
	data, _ := json.Marshal(header)
	return data
}

// SigningDigest is the canonical identifier validators sign: a composite of
// the mined hash, the height, and the creation timestamp. Signing is
// decoupled from payload size on purpose.
func (b *Block) SigningDigest() ids.ID {
	buf := make([]byte, 0, len(b.Hash)+8+len(time.RFC3339Nano))
	buf = append(buf, []byte(b.Hash)...)
	buf = binary.BigEndian.AppendUint64(buf, b.Height)
	buf = append(buf, []byte(b.Timestamp.UTC().Format(time.RFC3339Nano))...)
	return ids.NewID(buf)
}

// TxIDs returns the IDs of the member transactions in batch order.
func (b *Block) TxIDs() []string {
	out := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		out[i] = tx.TxID
	}
	return out
}

// Serialize encodes Block into JSON
func (b *Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize decodes JSON into Block
func Deserialize(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
