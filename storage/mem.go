package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// memBackend keeps region documents in process memory with a real
// monotonic version counter per region. It backs tests and the synctool
// mock mode; nothing survives a restart.
type memBackend struct {
	mu        sync.Mutex
	documents map[interfaces.Region][]byte
	versions  map[interfaces.Region]uint64
	log       *slog.Logger
}

// NewMemStore creates an in-memory cache store.
func NewMemStore(log *slog.Logger) *Store {
	b := &memBackend{
		documents: make(map[interfaces.Region][]byte),
		versions:  make(map[interfaces.Region]uint64),
		log:       log,
	}
	return newStore(b, log)
}

func (b *memBackend) readDocument(_ context.Context, region interfaces.Region) ([]byte, interfaces.DocumentVersion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.documents[region]
	if !ok {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: no cache document for region %q", interfaces.ErrCacheUnavailable, region.String())
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, memVersion(b.versions[region]), nil
}

func (b *memBackend) writeDocument(_ context.Context, region interfaces.Region, data []byte, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, exists := b.documents[region]

	switch {
	case !exists && version != interfaces.NoVersion:
		return interfaces.NoVersion, fmt.Errorf("%w: document for region %q vanished", interfaces.ErrVersionConflict, region.String())
	case exists && memVersion(b.versions[region]) != version:
		return interfaces.NoVersion, fmt.Errorf("%w: document for region %q changed since load", interfaces.ErrVersionConflict, region.String())
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	b.documents[region] = stored
	b.versions[region]++
	return memVersion(b.versions[region]), nil
}

func (b *memBackend) available(_ context.Context) bool { return true }

func (b *memBackend) name() string { return "mem" }

func (b *memBackend) locationURI() string { return "mem://" }

func memVersion(n uint64) interfaces.DocumentVersion {
	return interfaces.DocumentVersion(strconv.FormatUint(n, 10))
}
