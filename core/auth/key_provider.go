package auth

import (
	"crypto/ed25519"
	"errors"
	"os"

	core "sentinelchain/core"
)

// KeyProvider resolves the verification key for a token's key ID.
type KeyProvider interface {
	GetPublicKey(kid string) (interface{}, error)
}

// EnvKeyProvider loads a single Ed25519 verification key from the
// environment, for single-issuer deployments and tests.
type EnvKeyProvider struct {
	PublicKey ed25519.PublicKey
}

// NewEnvKeyProvider reads SENTINEL_TOKEN_PUBKEY (base64 Ed25519).
func NewEnvKeyProvider() (*EnvKeyProvider, error) {
	b64 := os.Getenv("SENTINEL_TOKEN_PUBKEY")
	if b64 == "" {
		return nil, errors.New("SENTINEL_TOKEN_PUBKEY not set in environment")
	}
	pub, err := core.DecodePublicKey(b64)
	if err != nil {
		return nil, err
	}
	return &EnvKeyProvider{PublicKey: pub}, nil
}

func (p *EnvKeyProvider) GetPublicKey(kid string) (interface{}, error) {
	if p.PublicKey != nil {
		return p.PublicKey, nil
	}
	return nil, errors.New("no public key set")
}
