package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveSealKey([]byte("correct horse battery staple"), []byte("ticketd-salt"))
	plaintext := []byte(`{"/etc/lb/ticket.key":{"last_rotation":1724630400.0}}`)

	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(plaintext))

	opened, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenDetectsTampering(t *testing.T) {
	key := DeriveSealKey([]byte("passphrase"), []byte("salt"))

	sealed, err := Seal(key, []byte("document"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = Open(key, sealed)
	assert.Error(t, err)
}

func TestOpenWrongKey(t *testing.T) {
	sealed, err := Seal(DeriveSealKey([]byte("one"), []byte("salt")), []byte("document"))
	require.NoError(t, err)

	_, err = Open(DeriveSealKey([]byte("two"), []byte("salt")), sealed)
	assert.Error(t, err)
}

func TestOpenTruncated(t *testing.T) {
	key := DeriveSealKey([]byte("passphrase"), []byte("salt"))
	_, err := Open(key, []byte("short"))
	assert.Error(t, err)
}

func TestDeriveSealKeyDeterministic(t *testing.T) {
	a := DeriveSealKey([]byte("p"), []byte("s"))
	b := DeriveSealKey([]byte("p"), []byte("s"))
	c := DeriveSealKey([]byte("p"), []byte("other"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, SealKeySize)
}
