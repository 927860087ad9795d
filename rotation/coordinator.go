package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/metrics"
)

// Coordinator runs the load-rotate-save cycle against a cache store with
// single-writer semantics per region. A per-region mutex serializes
// rotations within this process; the store's version check on save defends
// against concurrent writers elsewhere. A version conflict aborts the
// rotation without retry so the caller decides policy.
type Coordinator struct {
	store  interfaces.CacheStore
	engine *Engine
	log    *slog.Logger

	mu      sync.Mutex
	regions map[interfaces.Region]*sync.Mutex
}

// NewCoordinator creates a rotation coordinator on top of the given store
// and engine.
func NewCoordinator(store interfaces.CacheStore, engine *Engine, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		engine:  engine,
		log:     log,
		regions: make(map[interfaces.Region]*sync.Mutex),
	}
}

func (c *Coordinator) regionLock(region interfaces.Region) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.regions[region]
	if !ok {
		lock = &sync.Mutex{}
		c.regions[region] = lock
	}
	return lock
}

// RotateKey rotates one ring in one region: lock, load, rotate, save. The
// ring is persisted only when the window actually shifted; a too-soon
// outcome performs no write at all. All validation errors surface before
// any mutation.
func (c *Coordinator) RotateKey(ctx context.Context, region interfaces.Region, keyID interfaces.KeyID, candidate *interfaces.KeyMaterial) (Outcome, error) {
	if err := region.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := keyID.Validate(); err != nil {
		return Outcome{}, err
	}

	lock := c.regionLock(region)
	lock.Lock()
	defer lock.Unlock()

	cache, version, err := c.store.Load(ctx, region)
	if err != nil {
		metrics.RotationErrors.WithLabelValues(region.String(), "load").Inc()
		return Outcome{}, err
	}

	ring, err := cache.Ring(keyID)
	if err != nil {
		metrics.RotationErrors.WithLabelValues(region.String(), "unknown_key").Inc()
		return Outcome{}, err
	}

	outcome, err := c.engine.Rotate(ring, candidate)
	if err != nil {
		metrics.RotationErrors.WithLabelValues(region.String(), "rotate").Inc()
		return Outcome{}, err
	}

	if outcome.Status == StatusTooSoon {
		metrics.Rotations.WithLabelValues(region.String(), string(StatusTooSoon)).Inc()
		c.log.Info("Rotation deferred, cooldown active",
			slog.String("region", region.String()),
			slog.String("keyID", keyID.String()),
			slog.Time("nextEligible", outcome.NextEligible))
		return outcome, nil
	}

	updated := cache.Clone()
	updated[keyID] = outcome.Ring
	if _, err := c.store.Save(ctx, region, updated, version); err != nil {
		if errors.Is(err, interfaces.ErrVersionConflict) {
			metrics.SaveConflicts.WithLabelValues(region.String()).Inc()
		} else {
			metrics.RotationErrors.WithLabelValues(region.String(), "save").Inc()
		}
		return Outcome{}, err
	}

	metrics.Rotations.WithLabelValues(region.String(), string(StatusRotated)).Inc()
	c.log.Info("Rotated ticket key",
		slog.String("rotationID", uuid.NewString()),
		slog.String("region", region.String()),
		slog.String("keyID", keyID.String()),
		slog.String("admitted", outcome.Ring.Slots.Newest.Fingerprint()),
		slog.String("evicted", outcome.EvictedKey.Fingerprint()),
		slog.Time("nextEligible", outcome.NextEligible))

	return outcome, nil
}

// Ring returns one ring from the region's cache.
func (c *Coordinator) Ring(ctx context.Context, region interfaces.Region, keyID interfaces.KeyID) (interfaces.KeyRing, error) {
	if err := region.Validate(); err != nil {
		return interfaces.KeyRing{}, err
	}
	if err := keyID.Validate(); err != nil {
		return interfaces.KeyRing{}, err
	}

	cache, _, err := c.store.Load(ctx, region)
	if err != nil {
		return interfaces.KeyRing{}, err
	}
	return cache.Ring(keyID)
}

// Bootstrap creates the initial ring for a key identifier from three seed
// keys. It fails if the ring already exists; rotation is the only
// legitimate mutation afterwards.
func (c *Coordinator) Bootstrap(ctx context.Context, region interfaces.Region, keyID interfaces.KeyID, seeds [3]interfaces.KeyMaterial, lastRotation time.Time) error {
	if err := region.Validate(); err != nil {
		return err
	}

	ring, err := BootstrapRing(keyID, seeds, lastRotation)
	if err != nil {
		return err
	}

	lock := c.regionLock(region)
	lock.Lock()
	defer lock.Unlock()

	cache, version, err := c.store.Load(ctx, region)
	switch {
	case err == nil:
	case errors.Is(err, interfaces.ErrCacheUnavailable):
		cache, version = make(interfaces.KeyCache), interfaces.NoVersion
	default:
		return err
	}

	if _, exists := cache[keyID]; exists {
		return fmt.Errorf("%w: ring %s already exists in region %s", interfaces.ErrInvalidArgument, keyID, region)
	}

	updated := cache.Clone()
	updated[keyID] = ring
	if _, err := c.store.Save(ctx, region, updated, version); err != nil {
		return err
	}

	c.log.Info("Bootstrapped ticket key ring",
		slog.String("region", region.String()),
		slog.String("keyID", keyID.String()),
		slog.String("newest", ring.Slots.Newest.Fingerprint()))
	return nil
}
