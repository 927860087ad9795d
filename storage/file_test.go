package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCache(t *testing.T, keyID interfaces.KeyID) interfaces.KeyCache {
	t.Helper()
	slots := interfaces.KeySlots{}
	for _, target := range []*interfaces.KeyMaterial{&slots.Oldest, &slots.Current, &slots.Newest} {
		material, err := cryptoutils.GenerateKeyMaterial()
		require.NoError(t, err)
		*target = material
	}
	return interfaces.KeyCache{
		keyID: {
			KeyID:        keyID,
			LastRotation: time.Unix(1724630400, 0).UTC(),
			Slots:        slots,
		},
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	region := interfaces.Region("us-east-1")
	cache := testCache(t, "/etc/lb/ticket.key")

	version, err := store.Save(context.Background(), region, cache, interfaces.NoVersion)
	require.NoError(t, err)
	require.NotEqual(t, interfaces.NoVersion, version)

	loaded, loadedVersion, err := store.Load(context.Background(), region)
	require.NoError(t, err)
	assert.Equal(t, version, loadedVersion)
	require.Contains(t, loaded, interfaces.KeyID("/etc/lb/ticket.key"))
	assert.True(t, loaded["/etc/lb/ticket.key"].Equal(cache["/etc/lb/ticket.key"]))
}

func TestFileStoreLoadMissingRegion(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, _, err = store.Load(context.Background(), "eu-west-1")
	assert.ErrorIs(t, err, interfaces.ErrCacheUnavailable)
}

func TestFileStoreLoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "us-east-1.json"), []byte("{not json"), 0o600))

	_, _, err = store.Load(context.Background(), "us-east-1")
	assert.ErrorIs(t, err, interfaces.ErrCacheCorrupt)
}

func TestFileStoreVersionConflict(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	region := interfaces.Region("us-east-1")
	cache := testCache(t, "/etc/lb/ticket.key")

	v1, err := store.Save(context.Background(), region, cache, interfaces.NoVersion)
	require.NoError(t, err)

	// A second writer saves on top of v1; the first writer's retry with
	// the stale version must fail.
	updated := cache.Clone()
	ring := updated["/etc/lb/ticket.key"]
	ring.LastRotation = ring.LastRotation.Add(13 * time.Hour)
	updated["/etc/lb/ticket.key"] = ring

	_, err = store.Save(context.Background(), region, updated, v1)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), region, cache, v1)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)
	assert.ErrorIs(t, err, interfaces.ErrPersistence)
}

func TestFileStoreCreateConflict(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	region := interfaces.Region("us-east-1")
	cache := testCache(t, "/etc/lb/ticket.key")

	_, err = store.Save(context.Background(), region, cache, interfaces.NoVersion)
	require.NoError(t, err)

	// Creating again asserts the document does not exist yet.
	_, err = store.Save(context.Background(), region, cache, interfaces.NoVersion)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "us-east-1", testCache(t, "/etc/lb/ticket.key"), interfaces.NoVersion)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "us-east-1.json", entries[0].Name())
}

func TestFileStoreRegionsAreIndependent(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "us-east-1", testCache(t, "/etc/lb/a.key"), interfaces.NoVersion)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "eu-west-1", testCache(t, "/etc/lb/b.key"), interfaces.NoVersion)
	require.NoError(t, err)

	east, _, err := store.Load(context.Background(), "us-east-1")
	require.NoError(t, err)
	_, err = east.Ring("/etc/lb/b.key")
	assert.ErrorIs(t, err, interfaces.ErrKeyIDNotFound)
}

func TestFileStoreAvailable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)
	assert.True(t, store.Available(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, store.Available(context.Background()))
}
