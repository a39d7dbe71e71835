package storage

import (
	"crypto/aes"
	aescipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"os"
)

// DEKEnvVar names the base64-encoded 32-byte data encryption key. When it
// is unset the ledger stores records in plaintext.
const DEKEnvVar = "SENTINEL_DEK"

// cipher seals and opens ledger records with AES-256-GCM. A nil dek means
// encryption is disabled and both operations pass data through.
type cipher struct {
	dek []byte
}

func newCipherFromEnv() (*cipher, error) {
	dekB64 := os.Getenv(DEKEnvVar)
	if dekB64 == "" {
		return &cipher{}, nil
	}
	dek, err := base64.StdEncoding.DecodeString(dekB64)
	if err != nil {
		return nil, errors.New("failed to decode " + DEKEnvVar + ": " + err.Error())
	}
	if len(dek) != 32 {
		return nil, errors.New(DEKEnvVar + " must be 32 bytes (base64-encoded)")
	}
	return &cipher{dek: dek}, nil
}

func (c *cipher) seal(plaintext []byte) ([]byte, error) {
	if c.dek == nil {
		return plaintext, nil
	}
	block, err := aes.NewCipher(c.dek)
	if err != nil {
		return nil, err
	}
	gcm, err := aescipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *cipher) open(ciphertext []byte) ([]byte, error) {
	if c.dek == nil {
		return ciphertext, nil
	}
	block, err := aes.NewCipher(c.dek)
	if err != nil {
		return nil, err
	}
	gcm, err := aescipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ct, nil)
}
