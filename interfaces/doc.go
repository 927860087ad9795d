// Package interfaces defines core interfaces and types for the ticket-key
// rotation service, separating interface definitions from implementations.
//
// The service manages the symmetric keys that encrypt TLS session tickets
// across a fleet of load-balancer processes. Authoritative rotation state
// lives in a persisted per-region cache document; each live process holds
// its own volatile key window that is reconciled separately over a command
// channel.
//
// # Core Types
//
// KeyMaterial: an opaque 48-byte secret, base64-encoded in transit and at
// rest (alias of cryptoutils.KeyMaterial).
//
// KeyRing: the 3-slot rotation history (oldest/current/newest) for one key
// identifier, plus its last rotation time. Mutated only by the rotation
// engine.
//
// KeyCache: one region's rings keyed by KeyID, persisted as a single
// document and the sole source of truth for intended rotation state.
//
// RuntimeKeySet: the volatile former/current/next window one running
// instance holds in memory. Lost on restart, reconciled by pushing single
// keys.
//
// # Storage Interfaces
//
// CacheStore: loads and persists region documents with atomic,
// version-checked saves. Stores are created from URIs (file://, vault://,
// s3://, mem://) by a CacheStoreFactory.
//
// # Runtime Sync Interfaces
//
// RuntimeChannel: one request/response exchange with an instance's command
// socket, deadline-bounded.
//
// Clock: injected time source for the rotation cooldown gate.
//
// # Errors
//
// The package defines the sentinel errors shared across components
// (ErrInvalidKeyFormat, ErrCacheCorrupt, ErrCorruptRingState, ...). Callers
// match them with errors.Is; implementations wrap them with call-site
// detail. A rotation attempt inside the cooldown window is not an error:
// the engine reports it as a structured outcome.
package interfaces
