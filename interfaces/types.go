package interfaces

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
)

// KeyMaterial is re-exported so callers of the rotation engine do not need
// to import cryptoutils directly.
type KeyMaterial = cryptoutils.KeyMaterial

// KeyID identifies one session-ticket key ring. It is a stable identifier
// chosen by the deployment layer, conventionally the path of the key file
// on the load-balancer host (e.g. "/etc/lb/ticket.key").
type KeyID string

// NewKeyID creates a key identifier with validation.
func NewKeyID(id string) (KeyID, error) {
	k := KeyID(id)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate checks that the key identifier is non-empty and printable.
func (id KeyID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return fmt.Errorf("%w: empty key id", ErrInvalidArgument)
	}
	if strings.ContainsAny(string(id), "\x00\n\r\t ") {
		return fmt.Errorf("%w: key id contains whitespace or control characters", ErrInvalidArgument)
	}
	return nil
}

// String returns the key identifier as a string.
func (id KeyID) String() string {
	return string(id)
}

// Region is a deployment partition with its own independent key cache
// document. Regions are lowercase alphanumeric with hyphens, e.g. "us-east-1".
type Region string

var regionRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NewRegion creates a region name with validation.
func NewRegion(name string) (Region, error) {
	r := Region(name)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate checks the region name format.
func (r Region) Validate() error {
	if r == "" {
		return fmt.Errorf("%w: empty region", ErrInvalidArgument)
	}
	if !regionRegex.MatchString(string(r)) {
		return fmt.Errorf("%w: invalid region name %q", ErrInvalidArgument, string(r))
	}
	return nil
}

// String returns the region name as a string.
func (r Region) String() string {
	return string(r)
}

// SlotName names one of the three ring slots using the wire names of the
// persisted cache document. "first" holds the oldest admitted key and
// "third" the newest.
type SlotName string

// Ring slot wire names, ordered least to most recently admitted.
const (
	SlotFirst  SlotName = "first"
	SlotSecond SlotName = "second"
	SlotThird  SlotName = "third"
)

// KeySlots is the ordered triple of key material held by a ring, from
// least to most recently admitted.
type KeySlots struct {
	Oldest  KeyMaterial
	Current KeyMaterial
	Newest  KeyMaterial
}

// Get returns the material stored under the given wire slot name.
func (s KeySlots) Get(name SlotName) (KeyMaterial, error) {
	switch name {
	case SlotFirst:
		return s.Oldest, nil
	case SlotSecond:
		return s.Current, nil
	case SlotThird:
		return s.Newest, nil
	default:
		return "", fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, string(name))
	}
}

// Validate checks all three slots hold well-formed key material. The
// returned error names the first offending wire slot.
func (s KeySlots) Validate() error {
	checks := []struct {
		name     SlotName
		material KeyMaterial
	}{
		{SlotFirst, s.Oldest},
		{SlotSecond, s.Current},
		{SlotThird, s.Newest},
	}
	for _, c := range checks {
		if err := c.material.Validate(); err != nil {
			return fmt.Errorf("%w: slot %q: %v", ErrCorruptRingState, string(c.name), err)
		}
	}
	return nil
}

// KeyRing is the authoritative rotation state for one key identifier within
// one region: the last rotation time and the three most recently admitted
// keys. A ring is created once during bootstrap and thereafter mutated only
// by the rotation engine.
type KeyRing struct {
	KeyID        KeyID
	LastRotation time.Time
	Slots        KeySlots
}

// Validate checks the ring's identifier and slot contents.
func (r KeyRing) Validate() error {
	if err := r.KeyID.Validate(); err != nil {
		return err
	}
	return r.Slots.Validate()
}

// Equal reports whether two rings are identical, including rotation time.
func (r KeyRing) Equal(other KeyRing) bool {
	return r.KeyID == other.KeyID &&
		r.LastRotation.Equal(other.LastRotation) &&
		r.Slots == other.Slots
}

// KeyCache is one region's collection of key rings, keyed by key
// identifier. It is persisted as a single document per region and is the
// sole source of truth for intended rotation state.
type KeyCache map[KeyID]KeyRing

// Ring returns the ring for the given key identifier.
func (c KeyCache) Ring(keyID KeyID) (KeyRing, error) {
	ring, ok := c[keyID]
	if !ok {
		return KeyRing{}, fmt.Errorf("%w: %s", ErrKeyIDNotFound, keyID)
	}
	return ring, nil
}

// Clone returns a shallow-value copy of the cache. Rings are value types,
// so mutating the clone never touches the original.
func (c KeyCache) Clone() KeyCache {
	out := make(KeyCache, len(c))
	for id, ring := range c {
		out[id] = ring
	}
	return out
}

// RuntimeKeySet is the volatile 3-key window one running instance reports
// for a key identifier. It is lost on process restart and may lag the
// persisted ring until a sync push catches it up. It is intentionally not
// comparable field-for-field with KeyRing: reconciliation happens by
// pushing single keys, never by copying the structure.
type RuntimeKeySet struct {
	KeyID   KeyID
	Former  KeyMaterial
	Current KeyMaterial
	Next    KeyMaterial
}

// Age slides the runtime window after an instance admits material as its
// new "next" key.
func (s RuntimeKeySet) Age(material KeyMaterial) RuntimeKeySet {
	return RuntimeKeySet{
		KeyID:   s.KeyID,
		Former:  s.Current,
		Current: s.Next,
		Next:    material,
	}
}

// InstanceInfo describes one live load-balancer process reachable over the
// command channel. Fleet membership is supplied by the inventory file;
// this service performs no discovery.
type InstanceInfo struct {
	Name    string `yaml:"name"`
	Addr    string `yaml:"addr"`
	Network string `yaml:"network,omitempty"`
}

// Validate checks the instance record and defaults the network to "tcp".
func (i *InstanceInfo) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: instance with empty name", ErrInvalidArgument)
	}
	if i.Addr == "" {
		return fmt.Errorf("%w: instance %q has no address", ErrInvalidArgument, i.Name)
	}
	switch i.Network {
	case "":
		i.Network = "tcp"
	case "tcp", "unix":
	default:
		return fmt.Errorf("%w: instance %q: unsupported network %q", ErrInvalidArgument, i.Name, i.Network)
	}
	return nil
}
