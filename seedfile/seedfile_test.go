package seedfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

func seedKeys(t *testing.T) [3]interfaces.KeyMaterial {
	t.Helper()
	var keys [3]interfaces.KeyMaterial
	for i := range keys {
		key, err := cryptoutils.GenerateKeyMaterial()
		require.NoError(t, err)
		keys[i] = interfaces.KeyMaterial(key)
	}
	return keys
}

func TestReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.seed")
	keys := seedKeys(t)

	require.NoError(t, Write(path, keys))

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, keys, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReadTrailingWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.seed")
	keys := seedKeys(t)

	content := keys[0].String() + " \n" + keys[1].String() + "\t\r\n" + keys[2].String() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, keys, loaded)
}

func TestReadWrongLineCount(t *testing.T) {
	keys := seedKeys(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "got 0"},
		{"two lines", keys[0].String() + "\n" + keys[1].String() + "\n", "got 2"},
		{"four lines", keys[0].String() + "\n" + keys[1].String() + "\n" + keys[2].String() + "\n" + keys[0].String() + "\n", "got 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ticket.seed")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Read(path)
			require.ErrorIs(t, err, interfaces.ErrSeedFormat)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadBadLineNamesIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.seed")
	keys := seedKeys(t)

	content := keys[0].String() + "\nnot-a-key\n" + keys[2].String() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Read(path)
	require.ErrorIs(t, err, interfaces.ErrSeedFormat)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.seed"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRejectsInvalidKey(t *testing.T) {
	keys := seedKeys(t)
	keys[1] = "garbage"

	path := filepath.Join(t.TempDir(), "ticket.seed")
	err := Write(path, keys)
	require.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(filepath.Join(dir, "ticket.seed"), seedKeys(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".seed-"), "temp file left behind: %s", entry.Name())
	}
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.seed")

	keys, err := Generate(path)
	require.NoError(t, err)

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, keys, loaded)
	assert.NotEqual(t, keys[0], keys[1])
	assert.NotEqual(t, keys[1], keys[2])
}
