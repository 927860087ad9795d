package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

var t0 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func mustKey(t *testing.T) interfaces.KeyMaterial {
	t.Helper()
	material, err := cryptoutils.GenerateKeyMaterial()
	require.NoError(t, err)
	return material
}

func ringWith(t *testing.T, lastRotation time.Time) (interfaces.KeyRing, [3]interfaces.KeyMaterial) {
	t.Helper()
	keys := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}
	return interfaces.KeyRing{
		KeyID:        "/etc/lb/ticket.key",
		LastRotation: lastRotation,
		Slots: interfaces.KeySlots{
			Oldest:  keys[0],
			Current: keys[1],
			Newest:  keys[2],
		},
	}, keys
}

// Ring {A,B,C} rotated with candidate D thirteen hours later becomes
// {B,C,D} and reports A as evicted.
func TestRotateShiftsWindow(t *testing.T) {
	clock := &fakeClock{now: t0.Add(13 * time.Hour)}
	engine := NewEngine(clock, DefaultMinInterval)

	ring, abc := ringWith(t, t0)
	candidate := mustKey(t)

	outcome, err := engine.Rotate(ring, &candidate)
	require.NoError(t, err)

	assert.Equal(t, StatusRotated, outcome.Status)
	assert.Equal(t, abc[1], outcome.Ring.Slots.Oldest)
	assert.Equal(t, abc[2], outcome.Ring.Slots.Current)
	assert.Equal(t, candidate, outcome.Ring.Slots.Newest)
	assert.Equal(t, abc[0], outcome.EvictedKey)
	assert.Equal(t, clock.now, outcome.Ring.LastRotation)
}

// A second rotation one hour after the first is deferred and leaves the
// ring untouched.
func TestRotateTooSoonLeavesRingUnchanged(t *testing.T) {
	clock := &fakeClock{now: t0.Add(13 * time.Hour)}
	engine := NewEngine(clock, DefaultMinInterval)

	ring, _ := ringWith(t, t0)
	first := mustKey(t)
	outcome, err := engine.Rotate(ring, &first)
	require.NoError(t, err)
	require.Equal(t, StatusRotated, outcome.Status)

	clock.advance(time.Hour)
	second := mustKey(t)
	deferred, err := engine.Rotate(outcome.Ring, &second)
	require.NoError(t, err)

	assert.Equal(t, StatusTooSoon, deferred.Status)
	assert.True(t, deferred.Ring.Equal(outcome.Ring), "ring must be byte-for-byte unchanged")
	assert.Empty(t, deferred.EvictedKey)
	assert.Equal(t, outcome.Ring.LastRotation.Add(DefaultMinInterval), deferred.NextEligible)
}

func TestRotateInvalidCandidateIsHardFailure(t *testing.T) {
	engine := NewEngine(&fakeClock{now: t0.Add(13 * time.Hour)}, DefaultMinInterval)
	ring, _ := ringWith(t, t0)

	for _, bad := range []interfaces.KeyMaterial{"not-base64!!", "QUJD"} {
		candidate := bad
		_, err := engine.Rotate(ring, &candidate)
		assert.ErrorIs(t, err, interfaces.ErrInvalidKeyFormat)
	}
}

// An invalid candidate is rejected even inside the cooldown window:
// validation happens before the elapsed check.
func TestRotateValidatesCandidateBeforeCooldown(t *testing.T) {
	engine := NewEngine(&fakeClock{now: t0.Add(time.Hour)}, DefaultMinInterval)
	ring, _ := ringWith(t, t0)

	candidate := interfaces.KeyMaterial("junk")
	_, err := engine.Rotate(ring, &candidate)
	assert.ErrorIs(t, err, interfaces.ErrInvalidKeyFormat)
}

func TestRotateGeneratesCandidateWhenAbsent(t *testing.T) {
	engine := NewEngine(&fakeClock{now: t0.Add(13 * time.Hour)}, DefaultMinInterval)
	ring, _ := ringWith(t, t0)

	outcome, err := engine.Rotate(ring, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRotated, outcome.Status)
	assert.NoError(t, outcome.Ring.Slots.Newest.Validate())
	assert.NotEqual(t, ring.Slots.Newest, outcome.Ring.Slots.Newest)
}

// A corrupt stored slot refuses the rotation and names the slot.
func TestRotateRefusesCorruptRing(t *testing.T) {
	engine := NewEngine(&fakeClock{now: t0.Add(13 * time.Hour)}, DefaultMinInterval)

	ring, _ := ringWith(t, t0)
	ring.Slots.Current = "AAAAAAAAAAAAAAAAAAAAAAA=" // 17 bytes after decode

	candidate := mustKey(t)
	_, err := engine.Rotate(ring, &candidate)
	require.ErrorIs(t, err, interfaces.ErrCorruptRingState)
	assert.Contains(t, err.Error(), `slot "second"`)
}

// After N >= 3 rotations with distinct candidates the ring holds exactly
// the last three, independent of its starting contents.
func TestRotationWindowIsFIFO(t *testing.T) {
	clock := &fakeClock{now: t0}
	engine := NewEngine(clock, DefaultMinInterval)

	ring, _ := ringWith(t, t0)

	const n = 5
	var admitted []interfaces.KeyMaterial
	for i := 0; i < n; i++ {
		clock.advance(DefaultMinInterval + time.Minute)
		candidate := mustKey(t)
		outcome, err := engine.Rotate(ring, &candidate)
		require.NoError(t, err)
		require.Equal(t, StatusRotated, outcome.Status)
		ring = outcome.Ring
		admitted = append(admitted, candidate)
	}

	assert.Equal(t, admitted[n-3], ring.Slots.Oldest)
	assert.Equal(t, admitted[n-2], ring.Slots.Current)
	assert.Equal(t, admitted[n-1], ring.Slots.Newest)
}

func TestRotateExactlyAtCooldownBoundary(t *testing.T) {
	engine := NewEngine(&fakeClock{now: t0.Add(DefaultMinInterval)}, DefaultMinInterval)
	ring, _ := ringWith(t, t0)

	outcome, err := engine.Rotate(ring, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRotated, outcome.Status, "elapsed == min interval admits the rotation")
}

func TestBootstrapRing(t *testing.T) {
	seeds := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}

	ring, err := BootstrapRing("/etc/lb/ticket.key", seeds, t0)
	require.NoError(t, err)
	assert.Equal(t, seeds[0], ring.Slots.Oldest)
	assert.Equal(t, seeds[2], ring.Slots.Newest)

	seeds[1] = "garbage"
	_, err = BootstrapRing("/etc/lb/ticket.key", seeds, t0)
	assert.ErrorIs(t, err, interfaces.ErrCorruptRingState)

	_, err = BootstrapRing("", [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}, t0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}
