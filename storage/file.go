package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// fileBackend stores one <region>.json document per region under a base
// directory. Saves go through a temp file in the same directory followed
// by an atomic rename, so a concurrent reader observes either the prior
// document or the new one, never a truncated write. Versions are derived
// from document content and checked under a process-wide mutex before the
// rename.
type fileBackend struct {
	baseDir     string
	locationStr string
	log         *slog.Logger
	mu          sync.Mutex
}

// NewFileStore creates a cache store rooted at the given directory,
// creating it if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	b := &fileBackend{
		baseDir:     baseDir,
		locationStr: fmt.Sprintf("file://%s", baseDir),
		log:         log,
	}
	return newStore(b, log), nil
}

func (b *fileBackend) documentPath(region interfaces.Region) string {
	return filepath.Join(b.baseDir, region.String()+".json")
}

func (b *fileBackend) readDocument(_ context.Context, region interfaces.Region) ([]byte, interfaces.DocumentVersion, error) {
	data, err := os.ReadFile(b.documentPath(region))
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: no cache document for region %q", interfaces.ErrCacheUnavailable, region.String())
	}
	if err != nil {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrCacheUnavailable, err)
	}
	return data, contentVersion(data), nil
}

func (b *fileBackend) writeDocument(_ context.Context, region interfaces.Region, data []byte, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.documentPath(region)

	current, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if version != interfaces.NoVersion {
			return interfaces.NoVersion, fmt.Errorf("%w: document for region %q vanished", interfaces.ErrVersionConflict, region.String())
		}
	case err != nil:
		return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	default:
		if contentVersion(current) != version {
			return interfaces.NoVersion, fmt.Errorf("%w: document for region %q changed since load", interfaces.ErrVersionConflict, region.String())
		}
	}

	if err := atomicWriteFile(path, data, 0o600); err != nil {
		return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}

	b.log.Debug("Wrote cache document", slog.String("path", path), slog.Int("size", len(data)))
	return contentVersion(data), nil
}

func (b *fileBackend) available(_ context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File cache store unavailable", "err", err)
		return false
	}
	return true
}

func (b *fileBackend) name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

func (b *fileBackend) locationURI() string {
	return b.locationStr
}

// atomicWriteFile writes data to path via a temp file in the same
// directory: write, fsync, close, chmod, rename.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
