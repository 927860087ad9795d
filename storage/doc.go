// Package storage persists per-region key cache documents behind pluggable
// backends.
//
// One region's rotation state is a single JSON document mapping key
// identifiers to their rings:
//
//	{
//	  "/etc/lb/ticket.key": {
//	    "last_rotation": 1724630400.0,
//	    "keys": {"first": "<b64>", "second": "<b64>", "third": "<b64>"}
//	  }
//	}
//
// The first/second/third fields hold the oldest/current/newest ring slots;
// last_rotation is epoch seconds as a float.
//
// # Store URI Format
//
// Cache stores are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/ticketd/cache
//   - vault://vault.example.com:8200/secret/ticket-keys
//   - s3://bucket/prefix/?region=us-west-2
//   - mem://
//
// # Consistency
//
// Every save is atomic with respect to concurrent loads: the file backend
// writes a temp file and renames it over the previous document, vault and
// s3 writes are atomic on the service side. Each load returns an opaque
// document version that the following save must present; a stale version
// fails with interfaces.ErrVersionConflict. The file and mem backends give
// real compare-and-swap, vault uses the KV v2 check-and-set option, and s3
// is best-effort (ETag re-check before put).
//
// # Sealing
//
// A Store created through Factory.WithSealKey (or Store.WithSealKey)
// encrypts documents with AES-256-GCM before they reach the backend, so key
// material is never stored in the clear. A sealed document that fails
// authentication on load is reported as corrupt.
package storage
