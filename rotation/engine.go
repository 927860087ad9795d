package rotation

import (
	"fmt"
	"time"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

// DefaultMinInterval is the policy default for the rotation cooldown: a
// ring rotates at most once every 12 hours.
const DefaultMinInterval = 12 * time.Hour

// Status tags a rotation outcome.
type Status string

const (
	// StatusRotated means the window shifted and a new key was admitted.
	StatusRotated Status = "rotated"

	// StatusTooSoon means the cooldown has not elapsed. This is a normal
	// steady-state outcome under frequent rotation requests, not a
	// failure; the ring is returned unchanged.
	StatusTooSoon Status = "too_soon"
)

// Outcome is the result of a rotation attempt.
type Outcome struct {
	Status Status

	// Ring is the post-rotation ring, or the unchanged ring when the
	// outcome is StatusTooSoon.
	Ring interfaces.KeyRing

	// EvictedKey is the key that fell out of the window. It is reported
	// for audit purposes only and must never be reused. Empty unless the
	// outcome is StatusRotated.
	EvictedKey interfaces.KeyMaterial

	// NextEligible is the earliest time a rotation will be admitted.
	NextEligible time.Time
}

// Engine applies the time-gated sliding-window rotation algorithm to a
// key ring. The ring holds the three most recently admitted keys; a
// successful rotation evicts the oldest, shifts the window and admits the
// candidate as newest. The engine is pure: it never touches storage and
// reads time only through the injected clock.
type Engine struct {
	clock       interfaces.Clock
	minInterval time.Duration
}

// NewEngine creates a rotation engine. A nil clock selects the system
// clock; a non-positive minInterval selects DefaultMinInterval.
func NewEngine(clock interfaces.Clock, minInterval time.Duration) *Engine {
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Engine{clock: clock, minInterval: minInterval}
}

// MinInterval returns the engine's rotation cooldown.
func (e *Engine) MinInterval() time.Duration {
	return e.minInterval
}

// Rotate attempts one rotation of the ring. A nil candidate generates a
// fresh key; a supplied candidate is validated and rejected hard on bad
// format. Inside the cooldown window the unchanged ring is returned with
// StatusTooSoon. Before shifting, all three stored slots are re-validated;
// a corrupt slot refuses the rotation with ErrCorruptRingState naming the
// slot, rather than rotating on top of damaged state.
func (e *Engine) Rotate(ring interfaces.KeyRing, candidate *interfaces.KeyMaterial) (Outcome, error) {
	if err := ring.KeyID.Validate(); err != nil {
		return Outcome{}, err
	}

	var admitted interfaces.KeyMaterial
	if candidate == nil {
		generated, err := cryptoutils.GenerateKeyMaterial()
		if err != nil {
			return Outcome{}, err
		}
		admitted = generated
	} else {
		if err := candidate.Validate(); err != nil {
			return Outcome{}, err
		}
		admitted = *candidate
	}

	now := e.clock.Now().UTC()
	if elapsed := now.Sub(ring.LastRotation); elapsed < e.minInterval {
		return Outcome{
			Status:       StatusTooSoon,
			Ring:         ring,
			NextEligible: ring.LastRotation.Add(e.minInterval),
		}, nil
	}

	if err := ring.Slots.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("refusing to rotate %s: %w", ring.KeyID, err)
	}

	evicted := ring.Slots.Oldest
	rotated := interfaces.KeyRing{
		KeyID:        ring.KeyID,
		LastRotation: now,
		Slots: interfaces.KeySlots{
			Oldest:  ring.Slots.Current,
			Current: ring.Slots.Newest,
			Newest:  admitted,
		},
	}

	return Outcome{
		Status:       StatusRotated,
		Ring:         rotated,
		EvictedKey:   evicted,
		NextEligible: now.Add(e.minInterval),
	}, nil
}

// BootstrapRing builds the initial ring for a key identifier from three
// seed keys, ordered oldest to newest. Rings are created exactly once;
// thereafter only Rotate mutates them.
func BootstrapRing(keyID interfaces.KeyID, seeds [3]interfaces.KeyMaterial, lastRotation time.Time) (interfaces.KeyRing, error) {
	if err := keyID.Validate(); err != nil {
		return interfaces.KeyRing{}, err
	}
	ring := interfaces.KeyRing{
		KeyID:        keyID,
		LastRotation: lastRotation.UTC(),
		Slots: interfaces.KeySlots{
			Oldest:  seeds[0],
			Current: seeds[1],
			Newest:  seeds[2],
		},
	}
	if err := ring.Slots.Validate(); err != nil {
		return interfaces.KeyRing{}, err
	}
	return ring, nil
}
