package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// ringDocument is the wire form of one key ring inside a region cache
// document. last_rotation is epoch seconds as a float; the first/second/
// third key fields map to the oldest/current/newest ring slots.
type ringDocument struct {
	LastRotation float64      `json:"last_rotation"`
	Keys         ringKeysPart `json:"keys"`
}

type ringKeysPart struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Third  string `json:"third"`
}

// encodeCache serializes a region's cache to its persisted JSON document.
// Keys are emitted in sorted order so identical caches produce identical
// bytes, which keeps content-derived document versions stable.
func encodeCache(cache interfaces.KeyCache) ([]byte, error) {
	doc := make(map[string]ringDocument, len(cache))
	for keyID, ring := range cache {
		doc[string(keyID)] = ringDocument{
			LastRotation: epochSeconds(ring.LastRotation),
			Keys: ringKeysPart{
				First:  ring.Slots.Oldest.String(),
				Second: ring.Slots.Current.String(),
				Third:  ring.Slots.Newest.String(),
			},
		}
	}

	// json.Marshal emits map keys in sorted order.
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}
	return data, nil
}

// decodeCache parses a persisted region document. Structural problems are
// reported as ErrCacheCorrupt; slot material is deliberately not validated
// here so a corrupt slot is still loadable and can be refused by the
// rotation engine with a slot-specific error.
func decodeCache(data []byte) (interfaces.KeyCache, error) {
	var doc map[string]ringDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
	}

	cache := make(interfaces.KeyCache, len(doc))
	for rawID, ring := range doc {
		keyID := interfaces.KeyID(rawID)
		if err := keyID.Validate(); err != nil {
			return nil, fmt.Errorf("%w: bad key id %q", interfaces.ErrCacheCorrupt, rawID)
		}
		cache[keyID] = interfaces.KeyRing{
			KeyID:        keyID,
			LastRotation: timeFromEpochSeconds(ring.LastRotation),
			Slots: interfaces.KeySlots{
				Oldest:  interfaces.KeyMaterial(ring.Keys.First),
				Current: interfaces.KeyMaterial(ring.Keys.Second),
				Newest:  interfaces.KeyMaterial(ring.Keys.Third),
			},
		}
	}
	return cache, nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromEpochSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
