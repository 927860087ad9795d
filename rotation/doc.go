// Package rotation implements the time-gated sliding-window rotation of
// session-ticket key rings.
//
// A ring holds the three most recently admitted keys for one key
// identifier. Rotation is a fixed-depth-3 FIFO: the oldest key is evicted,
// the window shifts, and the candidate (supplied or freshly generated)
// becomes the newest key. A rotation inside the cooldown window (12 hours
// by default) is a normal outcome, reported as StatusTooSoon with the ring
// unchanged; callers must not treat it as a failure.
//
// Engine is the pure algorithm; it reads time only through an injected
// Clock. Coordinator wraps it with the persistence cycle: a per-region
// mutex serializes rotations within the process, and the cache store's
// document version is presented back on save, so a concurrent writer on
// another host surfaces as ErrVersionConflict instead of a lost update.
//
// Before any window shift the engine re-validates all three stored slots
// and refuses to rotate on top of corrupt state, naming the offending slot
// in the error.
package rotation
