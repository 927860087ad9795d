package cryptoutils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// KeyMaterialSize is the byte size of a decoded session-ticket key.
const KeyMaterialSize = 48

// ErrInvalidKeyFormat is returned when key material is not valid base64 or
// does not decode to exactly KeyMaterialSize bytes.
var ErrInvalidKeyFormat = errors.New("invalid key format")

// KeyMaterial is one session-ticket key: an opaque 48-byte secret carried
// as a standard base64 string. The encoded form is what appears in cache
// documents, seed files and command-channel payloads.
type KeyMaterial string

// NewKeyMaterial creates key material from its encoded form with validation.
func NewKeyMaterial(encoded string) (KeyMaterial, error) {
	m := KeyMaterial(encoded)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// KeyMaterialFromBytes encodes a raw 48-byte secret.
func KeyMaterialFromBytes(raw []byte) (KeyMaterial, error) {
	if len(raw) != KeyMaterialSize {
		return "", fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyFormat, len(raw), KeyMaterialSize)
	}
	return KeyMaterial(base64.StdEncoding.EncodeToString(raw)), nil
}

// GenerateKeyMaterial produces a fresh key from the system CSPRNG. Used
// whenever a caller does not supply an explicit candidate key.
func GenerateKeyMaterial() (KeyMaterial, error) {
	raw := make([]byte, KeyMaterialSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return KeyMaterialFromBytes(raw)
}

// Validate decodes the material and checks the decoded length. Decode
// failures and wrong-length results both report ErrInvalidKeyFormat,
// distinguished by message detail only.
func (m KeyMaterial) Validate() error {
	_, err := m.Bytes()
	return err
}

// Bytes returns the decoded 48-byte secret.
func (m KeyMaterial) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(m))
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64: %v", ErrInvalidKeyFormat, err)
	}
	if len(raw) != KeyMaterialSize {
		return nil, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrInvalidKeyFormat, len(raw), KeyMaterialSize)
	}
	return raw, nil
}

// String returns the base64 form.
func (m KeyMaterial) String() string {
	return string(m)
}

// Fingerprint returns a short non-reversible identifier for the key,
// suitable for audit logs and API responses. Raw material never appears in
// either.
func (m KeyMaterial) Fingerprint() string {
	sum := sha256.Sum256([]byte(m))
	return hex.EncodeToString(sum[:8])
}
