// Package cryptoutils provides the session-ticket key codec and the
// at-rest sealing primitives used by the rotation service.
//
// # Key Material
//
// A session-ticket key is exactly 48 random bytes, carried everywhere as a
// standard base64 string (KeyMaterial). Validate enforces both the
// encoding and the decoded length; GenerateKeyMaterial draws fresh keys
// from crypto/rand. Fingerprint gives a short SHA-256-derived identifier
// so logs and API responses never contain raw material.
//
// # Document Sealing
//
// Seal and Open encrypt cache documents with AES-256-GCM under a key
// derived from an operator passphrase via argon2id (DeriveSealKey).
// Sealing is optional and wraps any cache store backend.
package cryptoutils
