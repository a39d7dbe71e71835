package genesis

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	core "sentinelchain/core"
)

// Defaults applied when the config leaves a knob unset.
const (
	DefaultMempoolCapacity = 10_000
	DefaultTxMaxAgeHours   = 24
	DefaultBlockTxLimit    = 100
)

// LoadChainConfig loads and validates the chain config from a JSON file.
func LoadChainConfig(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read chain config: %w", err)
	}
	var config ChainConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not parse chain config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

// Validate checks the config for obvious misconfiguration before the node
// starts: at least one validator, decodable keys, sane engine params.
func (c *ChainConfig) Validate() error {
	if c.ChainID == "" {
		return errors.New("chain config is missing chainId")
	}
	if len(c.Validators) == 0 {
		return errors.New("chain config needs at least one validator")
	}
	seen := make(map[string]bool, len(c.Validators))
	for _, v := range c.Validators {
		if v.ID == "" {
			return errors.New("validator entry is missing an id")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate validator id %q", v.ID)
		}
		seen[v.ID] = true
		if _, err := core.DecodePublicKey(v.PubKey); err != nil {
			return fmt.Errorf("validator %q: %w", v.ID, err)
		}
	}
	if c.Params.MinFee < 0 {
		return errors.New("minFee must be non-negative")
	}
	if c.Params.MaxTxSizeBytes <= 0 {
		return errors.New("maxTxSizeBytes must be positive")
	}
	if c.Params.InitialDifficulty < 1 {
		return errors.New("initialDifficulty must be at least 1")
	}
	return nil
}

func (c *ChainConfig) applyDefaults() {
	if c.Params.MempoolCapacity == 0 {
		c.Params.MempoolCapacity = DefaultMempoolCapacity
	}
	if c.Params.TxMaxAgeHours == 0 {
		c.Params.TxMaxAgeHours = DefaultTxMaxAgeHours
	}
	if c.Params.BlockTxLimit == 0 {
		c.Params.BlockTxLimit = DefaultBlockTxLimit
	}
	if c.GenesisTime.IsZero() {
		c.GenesisTime = time.Now().UTC()
	}
}

// PublicKeys returns the decoded validator keys by signer ID.
func (c *ChainConfig) PublicKeys() (map[string]ed25519.PublicKey, error) {
	keys := make(map[string]ed25519.PublicKey, len(c.Validators))
	for _, v := range c.Validators {
		pub, err := core.DecodePublicKey(v.PubKey)
		if err != nil {
			return nil, fmt.Errorf("validator %q: %w", v.ID, err)
		}
		keys[v.ID] = pub
	}
	return keys, nil
}
