package wallet

import (
	"errors"
	"os"
)

// EnvWalletLoader loads the local validator's signing key from the
// environment, for dev nodes and tests.
type EnvWalletLoader struct{}

func (l *EnvWalletLoader) LoadWallet() (*Wallet, error) {
	signerID := os.Getenv("SENTINEL_SIGNER_ID")
	privB64 := os.Getenv("SENTINEL_SIGNER_PRIVKEY")
	if signerID == "" || privB64 == "" {
		return nil, errors.New("SENTINEL_SIGNER_ID and SENTINEL_SIGNER_PRIVKEY must be set in environment")
	}
	priv, err := DecodePrivateKey(privB64)
	if err != nil {
		return nil, err
	}
	return &Wallet{SignerID: signerID, PrivateKey: priv}, nil
}
