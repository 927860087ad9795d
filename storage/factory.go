package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// Factory creates cache stores from location URIs.
type Factory struct {
	log     *slog.Logger
	sealKey []byte
}

var _ interfaces.CacheStoreFactory = (*Factory)(nil)

// NewFactory creates a cache store factory.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// WithSealKey returns a factory whose stores seal documents at rest.
func (f *Factory) WithSealKey(key []byte) *Factory {
	return &Factory{log: f.log, sealKey: key}
}

// CacheStoreFor creates a cache store from a location URI.
//
// Supported schemes:
//   - file:// - one JSON document per region under a local directory
//   - vault:// - one KV v2 secret per region, check-and-set on save
//   - s3:// - one object per region in an S3-compatible bucket
//   - mem:// - in-memory store for tests and local experiments
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) CacheStoreFor(location interfaces.CacheStoreLocation) (interfaces.CacheStore, error) {
	var (
		store *Store
		err   error
	)

	switch strings.ToLower(location.Scheme) {
	case "file":
		store, err = f.createFileStore(location)
	case "vault":
		store, err = f.createVaultStore(location)
	case "s3":
		store, err = f.createS3Store(location)
	case "mem":
		store = NewMemStore(f.log)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if f.sealKey != nil {
		store = store.WithSealKey(f.sealKey)
	}
	return store, nil
}

// createFileStore handles file:///absolute/path URIs.
func (f *Factory) createFileStore(location interfaces.CacheStoreLocation) (*Store, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %q", interfaces.ErrInvalidLocationURI, location.Raw)
	}
	f.log.Debug("Creating file cache store", slog.String("path", path))
	return NewFileStore(path, f.log)
}

// createVaultStore handles vault://host:port/mount/path?tls=off&token=... URIs.
// The token parameter overrides the VAULT_TOKEN environment variable.
func (f *Factory) createVaultStore(location interfaces.CacheStoreLocation) (*Store, error) {
	if location.Host == "" {
		return nil, fmt.Errorf("%w: vault URI %q has no host", interfaces.ErrInvalidLocationURI, location.Raw)
	}

	scheme := "https"
	if location.GetParam("tls") == "off" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	parts := strings.SplitN(strings.Trim(location.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI %q needs /mount/path", interfaces.ErrInvalidLocationURI, location.Raw)
	}

	f.log.Debug("Creating vault cache store", slog.String("address", address), slog.String("mount", parts[0]))
	return NewVaultStore(address, parts[0], parts[1], location.GetParam("token"), f.log)
}

// createS3Store handles s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=...&endpoint=... URIs.
func (f *Factory) createS3Store(location interfaces.CacheStoreLocation) (*Store, error) {
	if location.Host == "" {
		return nil, fmt.Errorf("%w: s3 URI %q has no bucket", interfaces.ErrInvalidLocationURI, location.Raw)
	}

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if location.Auth != "" {
		creds := strings.SplitN(location.Auth, ":", 2)
		accessKey = creds[0]
		if len(creds) > 1 {
			secretKey = creds[1]
		}
	}

	f.log.Debug("Creating s3 cache store", slog.String("bucket", location.Host), slog.String("region", region))
	return NewS3Store(location.Host, strings.TrimPrefix(location.Path, "/"), region, location.GetParam("endpoint"), accessKey, secretKey, f.log)
}
