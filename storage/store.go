package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

// backend reads and writes raw region documents. Implementations provide
// whatever compare-and-swap semantics their medium supports; writeDocument
// with a stale version must fail with ErrVersionConflict and leave the
// stored document untouched.
type backend interface {
	// readDocument returns the raw document and its current version, or
	// ErrCacheUnavailable when the document does not exist or cannot be
	// read.
	readDocument(ctx context.Context, region interfaces.Region) ([]byte, interfaces.DocumentVersion, error)

	// writeDocument persists the raw document, asserting the given
	// version is still current. interfaces.NoVersion asserts creation.
	writeDocument(ctx context.Context, region interfaces.Region, data []byte, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error)

	available(ctx context.Context) bool
	name() string
	locationURI() string
}

// Store persists region key caches through a concrete backend, handling
// document encoding and optional at-rest sealing. It implements
// interfaces.CacheStore.
type Store struct {
	backend backend
	sealKey []byte
	log     *slog.Logger
}

var _ interfaces.CacheStore = (*Store)(nil)

func newStore(b backend, log *slog.Logger) *Store {
	return &Store{backend: b, log: log}
}

// WithSealKey returns a copy of the store that seals documents with
// AES-256-GCM before they reach the backend and opens them after load.
// A sealed document that fails to open is reported as corrupt.
func (s *Store) WithSealKey(key []byte) *Store {
	return &Store{backend: s.backend, sealKey: key, log: s.log}
}

// Load reads and decodes the region's cache document.
func (s *Store) Load(ctx context.Context, region interfaces.Region) (interfaces.KeyCache, interfaces.DocumentVersion, error) {
	if err := region.Validate(); err != nil {
		return nil, interfaces.NoVersion, err
	}

	data, version, err := s.backend.readDocument(ctx, region)
	if err != nil {
		return nil, interfaces.NoVersion, err
	}

	if s.sealKey != nil {
		data, err = cryptoutils.Open(s.sealKey, data)
		if err != nil {
			return nil, interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
		}
	}

	cache, err := decodeCache(data)
	if err != nil {
		return nil, interfaces.NoVersion, err
	}

	s.log.Debug("Loaded region cache",
		slog.String("store", s.backend.name()),
		slog.String("region", region.String()),
		slog.Int("rings", len(cache)))

	return cache, version, nil
}

// Save encodes and persists the full document. The version must be the one
// returned by the Load this save is based on; on mismatch the save fails
// with ErrVersionConflict.
func (s *Store) Save(ctx context.Context, region interfaces.Region, cache interfaces.KeyCache, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error) {
	if err := region.Validate(); err != nil {
		return interfaces.NoVersion, err
	}

	data, err := encodeCache(cache)
	if err != nil {
		return interfaces.NoVersion, err
	}

	if s.sealKey != nil {
		data, err = cryptoutils.Seal(s.sealKey, data)
		if err != nil {
			return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
		}
	}

	newVersion, err := s.backend.writeDocument(ctx, region, data, version)
	if err != nil {
		return interfaces.NoVersion, err
	}

	s.log.Debug("Saved region cache",
		slog.String("store", s.backend.name()),
		slog.String("region", region.String()),
		slog.Int("rings", len(cache)))

	return newVersion, nil
}

// Available reports whether the backing medium is reachable.
func (s *Store) Available(ctx context.Context) bool {
	return s.backend.available(ctx)
}

// Name returns a short identifier for logging.
func (s *Store) Name() string {
	return s.backend.name()
}

// LocationURI returns the URI this store was created from.
func (s *Store) LocationURI() string {
	return s.backend.locationURI()
}

// contentVersion derives a document version from raw content. Used by
// backends whose medium has no native revision counter.
func contentVersion(data []byte) interfaces.DocumentVersion {
	sum := sha256.Sum256(data)
	return interfaces.DocumentVersion(hex.EncodeToString(sum[:]))
}
