package core

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// GenerateKeypair generates a fresh Ed25519 keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs the message with the given private key
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify verifies the signature with the given public key.
// Malformed keys verify as false rather than panicking.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// DecodePublicKey decodes a base64-encoded Ed25519 public key.
func DecodePublicKey(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.New("public key is not valid base64: " + err.Error())
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("public key must be 32 bytes")
	}
	return ed25519.PublicKey(raw), nil
}

// EncodePublicKey encodes an Ed25519 public key as base64.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}
