package cryptoutils

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMaterialRoundTrip(t *testing.T) {
	raw := make([]byte, KeyMaterialSize)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	material, err := KeyMaterialFromBytes(raw)
	require.NoError(t, err)

	decoded, err := material.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestKeyMaterialValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid 48-byte key",
			input:   base64.StdEncoding.EncodeToString(make([]byte, 48)),
			wantErr: false,
		},
		{
			name:    "not base64",
			input:   "not-base64!!",
			wantErr: true,
		},
		{
			name:    "32 bytes after decode",
			input:   base64.StdEncoding.EncodeToString(make([]byte, 32)),
			wantErr: true,
		},
		{
			name:    "49 bytes after decode",
			input:   base64.StdEncoding.EncodeToString(make([]byte, 49)),
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := KeyMaterial(tt.input).Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKeyFormat)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateKeyMaterial(t *testing.T) {
	first, err := GenerateKeyMaterial()
	require.NoError(t, err)
	require.NoError(t, first.Validate())

	second, err := GenerateKeyMaterial()
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "two generated keys must differ")
}

func TestKeyMaterialFromBytesWrongLength(t *testing.T) {
	_, err := KeyMaterialFromBytes(make([]byte, 47))
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestFingerprintStableAndShort(t *testing.T) {
	material, err := GenerateKeyMaterial()
	require.NoError(t, err)

	fp := material.Fingerprint()
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, material.Fingerprint())
	assert.False(t, strings.Contains(string(material), fp))
}
