package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// SealKeySize is the byte size of a document sealing key.
const SealKeySize = 32

// DeriveSealKey derives a sealing key from an operator passphrase using
// argon2id. The salt must be stable for a deployment (it is stored next to
// the sealed documents) so the same passphrase always yields the same key.
func DeriveSealKey(passphrase, salt []byte) []byte {
	const (
		timeCost   = 1
		memoryCost = 64 * 1024
		threads    = 4
	)
	return argon2.IDKey(passphrase, salt, timeCost, memoryCost, threads, SealKeySize)
}

// Seal encrypts a cache document with AES-256-GCM. The random nonce is
// prefixed to the ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

// Open decrypts a document produced by Seal. Any truncation or tampering
// fails authentication.
func Open(key, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed document too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed document: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SealKeySize {
		return nil, fmt.Errorf("invalid seal key size: got %d bytes, want %d", len(key), SealKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
