package interfaces

import (
	"context"
	"fmt"
	"net/url"
)

// DocumentVersion is an opaque revision marker for one region's cache
// document. A store returns the current version on load and requires it
// back on save; saving with a stale version fails with ErrVersionConflict.
// The zero value means "document does not exist yet".
type DocumentVersion string

// NoVersion is the version of a document that has not been created yet.
// Passing it to Save asserts the save creates the document.
const NoVersion DocumentVersion = ""

// CacheStore loads and persists region cache documents. Implementations
// must make saves atomic from the perspective of concurrent loads: a
// reader observes either the prior document or the new one, never a
// partial write.
type CacheStore interface {
	// Load reads the region's document. It returns ErrCacheUnavailable if
	// the document does not exist or cannot be read, and ErrCacheCorrupt
	// if the content does not parse.
	Load(ctx context.Context, region Region) (KeyCache, DocumentVersion, error)

	// Save writes the full document back. The version must match the one
	// returned by the Load this save is based on; on mismatch Save fails
	// with ErrVersionConflict and leaves the stored document untouched.
	Save(ctx context.Context, region Region, cache KeyCache, version DocumentVersion) (DocumentVersion, error)

	// Available reports whether the backing store is reachable.
	Available(ctx context.Context) bool

	// Name returns a short identifier for logging.
	Name() string

	// LocationURI returns the URI this store was created from.
	LocationURI() string
}

// CacheStoreLocation is a parsed cache store URI.
// Format: [scheme]://[auth@]host[:port][/path][?params]
type CacheStoreLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	Auth   string
}

// NewCacheStoreLocation parses and validates a cache store URI.
//
// Supported schemes:
//   - file:///var/lib/ticketd/cache
//   - vault://vault.example.com:8200/secret/ticket-keys
//   - s3://bucket/prefix/?region=us-west-2
//   - mem://
func NewCacheStoreLocation(uri string) (CacheStoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return CacheStoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "vault", "s3", "mem":
	default:
		return CacheStoreLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return CacheStoreLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI.
func (loc CacheStoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc CacheStoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// CacheStoreFactory creates cache stores from location URIs.
type CacheStoreFactory interface {
	// CacheStoreFor creates a store from a URI.
	// Supports file://, vault://, s3://, mem://.
	CacheStoreFor(location CacheStoreLocation) (CacheStore, error)
}
