package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
)

// Wallet holds a validator's signing key. The private key never leaves the
// process; key rotation and custody belong to the surrounding product.
type Wallet struct {
	SignerID   string
	PrivateKey ed25519.PrivateKey
}

// WalletLoader abstracts where signing keys come from.
type WalletLoader interface {
	LoadWallet() (*Wallet, error)
}

// Public returns the wallet's public key.
func (w *Wallet) Public() ed25519.PublicKey {
	return w.PrivateKey.Public().(ed25519.PublicKey)
}

// Sign signs a message with the wallet key.
func (w *Wallet) Sign(msg []byte) []byte {
	return ed25519.Sign(w.PrivateKey, msg)
}

// DecodePrivateKey decodes a base64 Ed25519 private key.
func DecodePrivateKey(b64 string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.New("private key is not valid base64: " + err.Error())
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.New("private key must be 64 bytes")
	}
	return ed25519.PrivateKey(raw), nil
}
