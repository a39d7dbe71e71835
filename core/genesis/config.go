package genesis

import "time"

// ValidatorConfig is one validator entry in the chain config.
type ValidatorConfig struct {
	ID     string `json:"id"`
	PubKey string `json:"pubKey"` // base64 Ed25519 public key
}

// EngineParams holds the finality engine's tuning knobs.
type EngineParams struct {
	MinFee            float64 `json:"minFee"`
	MaxTxSizeBytes    int     `json:"maxTxSizeBytes"`
	MempoolCapacity   int     `json:"mempoolCapacity,omitempty"`
	TxMaxAgeHours     int     `json:"txMaxAgeHours,omitempty"`
	InitialDifficulty int     `json:"initialDifficulty"`
	MiningBudget      uint64  `json:"miningBudget,omitempty"` // nonce attempts before relaxing difficulty
	BlockTxLimit      int     `json:"blockTxLimit,omitempty"`
}

// ChainConfig is the full chain configuration schema.
type ChainConfig struct {
	ChainID     string            `json:"chainId"`
	GenesisTime time.Time         `json:"genesisTime"`
	Validators  []ValidatorConfig `json:"validators"`
	Params      EngineParams      `json:"params"`
}

// ValidatorIDs returns the configured signer identifiers.
func (c *ChainConfig) ValidatorIDs() []string {
	ids := make([]string, len(c.Validators))
	for i, v := range c.Validators {
		ids[i] = v.ID
	}
	return ids
}
