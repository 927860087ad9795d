package rotation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/storage"
)

func testCoordinator(t *testing.T, clock interfaces.Clock) (*Coordinator, interfaces.CacheStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemStore(log)
	return NewCoordinator(store, NewEngine(clock, DefaultMinInterval), log), store
}

func TestCoordinatorRotatePersists(t *testing.T) {
	clock := &fakeClock{now: t0}
	coord, _ := testCoordinator(t, clock)

	seeds := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}
	require.NoError(t, coord.Bootstrap(context.Background(), "us-east-1", "/etc/lb/ticket.key", seeds, t0))

	clock.advance(13 * time.Hour)
	candidate := mustKey(t)
	outcome, err := coord.RotateKey(context.Background(), "us-east-1", "/etc/lb/ticket.key", &candidate)
	require.NoError(t, err)
	require.Equal(t, StatusRotated, outcome.Status)

	persisted, err := coord.Ring(context.Background(), "us-east-1", "/etc/lb/ticket.key")
	require.NoError(t, err)
	assert.True(t, persisted.Equal(outcome.Ring))
	assert.Equal(t, candidate, persisted.Slots.Newest)
}

func TestCoordinatorTooSoonDoesNotWrite(t *testing.T) {
	clock := &fakeClock{now: t0}
	coord, store := testCoordinator(t, clock)

	seeds := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}
	require.NoError(t, coord.Bootstrap(context.Background(), "us-east-1", "/etc/lb/ticket.key", seeds, t0))

	_, versionBefore, err := store.Load(context.Background(), "us-east-1")
	require.NoError(t, err)

	clock.advance(time.Hour)
	outcome, err := coord.RotateKey(context.Background(), "us-east-1", "/etc/lb/ticket.key", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusTooSoon, outcome.Status)

	_, versionAfter, err := store.Load(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter, "a deferred rotation must not touch the store")
}

func TestCoordinatorUnknownKeyID(t *testing.T) {
	clock := &fakeClock{now: t0}
	coord, _ := testCoordinator(t, clock)

	seeds := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}
	require.NoError(t, coord.Bootstrap(context.Background(), "us-east-1", "/etc/lb/ticket.key", seeds, t0))

	_, err := coord.RotateKey(context.Background(), "us-east-1", "/etc/lb/other.key", nil)
	assert.ErrorIs(t, err, interfaces.ErrKeyIDNotFound)
}

func TestCoordinatorMissingRegion(t *testing.T) {
	coord, _ := testCoordinator(t, &fakeClock{now: t0})
	_, err := coord.RotateKey(context.Background(), "eu-west-1", "/etc/lb/ticket.key", nil)
	assert.ErrorIs(t, err, interfaces.ErrCacheUnavailable)
}

func TestCoordinatorInvalidArguments(t *testing.T) {
	coord, _ := testCoordinator(t, &fakeClock{now: t0})

	_, err := coord.RotateKey(context.Background(), "", "/etc/lb/ticket.key", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, err = coord.RotateKey(context.Background(), "us-east-1", "", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}

// Scenario: ring with a corrupt "second" slot refuses rotation and the
// stored document stays untouched.
func TestCoordinatorCorruptSlotAbortsWithoutWrite(t *testing.T) {
	clock := &fakeClock{now: t0}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemStore(log)
	coord := NewCoordinator(store, NewEngine(clock, DefaultMinInterval), log)

	cache := interfaces.KeyCache{
		"/etc/lb/ticket.key": {
			KeyID:        "/etc/lb/ticket.key",
			LastRotation: t0,
			Slots: interfaces.KeySlots{
				Oldest:  mustKey(t),
				Current: "AAAAAAAAAAAAAAAAAAAAAAA=", // 17 bytes after decode
				Newest:  mustKey(t),
			},
		},
	}
	_, err := store.Save(context.Background(), "us-east-1", cache, interfaces.NoVersion)
	require.NoError(t, err)
	_, versionBefore, err := store.Load(context.Background(), "us-east-1")
	require.NoError(t, err)

	clock.advance(13 * time.Hour)
	_, err = coord.RotateKey(context.Background(), "us-east-1", "/etc/lb/ticket.key", nil)
	require.ErrorIs(t, err, interfaces.ErrCorruptRingState)
	assert.Contains(t, err.Error(), `slot "second"`)

	_, versionAfter, err := store.Load(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter)
}

func TestCoordinatorBootstrapTwiceFails(t *testing.T) {
	coord, _ := testCoordinator(t, &fakeClock{now: t0})

	seeds := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}
	require.NoError(t, coord.Bootstrap(context.Background(), "us-east-1", "/etc/lb/ticket.key", seeds, t0))
	err := coord.Bootstrap(context.Background(), "us-east-1", "/etc/lb/ticket.key", seeds, t0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}

// Concurrent rotations of the same ring are serialized: exactly one
// shifts the window, the rest observe the cooldown.
func TestCoordinatorSerializesConcurrentRotations(t *testing.T) {
	clock := &fakeClock{now: t0}
	coord, _ := testCoordinator(t, clock)

	seeds := [3]interfaces.KeyMaterial{mustKey(t), mustKey(t), mustKey(t)}
	require.NoError(t, coord.Bootstrap(context.Background(), "us-east-1", "/etc/lb/ticket.key", seeds, t0))
	clock.advance(13 * time.Hour)

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = coord.RotateKey(context.Background(), "us-east-1", "/etc/lb/ticket.key", nil)
		}(i)
	}
	wg.Wait()

	rotated := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i].Status == StatusRotated {
			rotated++
		}
	}
	assert.Equal(t, 1, rotated, "exactly one concurrent rotation may win")
}
