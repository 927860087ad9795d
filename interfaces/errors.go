package interfaces

import (
	"errors"
	"fmt"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
)

var (
	// ErrInvalidArgument is returned when a required identifier is missing
	// or malformed. Raised before any mutation takes place.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidKeyFormat is returned when key material is not valid
	// base64 or does not decode to exactly 48 bytes. Both failure modes
	// report this error, distinguished by message detail only.
	ErrInvalidKeyFormat = cryptoutils.ErrInvalidKeyFormat

	// ErrKeyIDNotFound is returned when a region's cache has no ring for
	// the requested key identifier.
	ErrKeyIDNotFound = errors.New("key id not found")

	// ErrCacheUnavailable is returned when a region's cache document does
	// not exist or cannot be read from the store.
	ErrCacheUnavailable = errors.New("key cache unavailable")

	// ErrCacheCorrupt is returned when a region's cache document exists
	// but does not parse as the expected structure.
	ErrCacheCorrupt = errors.New("key cache corrupt")

	// ErrCorruptRingState is returned when a stored ring slot fails
	// re-validation during rotation. The rotation is refused entirely;
	// the error names the offending slot.
	ErrCorruptRingState = errors.New("corrupt ring state")

	// ErrPersistence is returned when writing a cache document back to
	// the store fails. Atomic saves guarantee no partial document is ever
	// visible to concurrent readers.
	ErrPersistence = errors.New("cache persistence failed")

	// ErrVersionConflict is returned by a compare-and-swap save when the
	// document changed since it was loaded. It wraps ErrPersistence so
	// callers matching the broader class still catch it.
	ErrVersionConflict = fmt.Errorf("%w: version conflict", ErrPersistence)

	// ErrChannelTimeout is returned when a command-channel call exceeds
	// its deadline. Always distinguishable from an instance-level
	// rejection.
	ErrChannelTimeout = errors.New("command channel timeout")

	// ErrRejectedByInstance is returned when an instance refuses to admit
	// pushed key material.
	ErrRejectedByInstance = errors.New("rejected by instance")

	// ErrNotTracked is returned when an instance does not track the
	// requested key identifier.
	ErrNotTracked = errors.New("key id not tracked by instance")

	// ErrSeedFormat is returned when a seed file does not contain exactly
	// three valid keys. The error names the offending line where one
	// exists.
	ErrSeedFormat = errors.New("invalid seed file")

	// ErrInvalidLocationURI is returned when a cache store location URI is
	// malformed or uses an unsupported scheme.
	ErrInvalidLocationURI = errors.New("invalid cache store location URI")
)
