package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// Router is a CacheStore that dispatches each call to the store configured
// for the requested region. Regions not present in the routing table are
// reported unavailable, never silently created somewhere else.
type Router struct {
	stores map[interfaces.Region]interfaces.CacheStore
}

// NewRouter creates a region-routing store.
func NewRouter(stores map[interfaces.Region]interfaces.CacheStore) *Router {
	return &Router{stores: stores}
}

func (r *Router) store(region interfaces.Region) (interfaces.CacheStore, error) {
	store, ok := r.stores[region]
	if !ok {
		return nil, fmt.Errorf("%w: no cache configured for region %s", interfaces.ErrCacheUnavailable, region)
	}
	return store, nil
}

// Load dispatches to the region's store.
func (r *Router) Load(ctx context.Context, region interfaces.Region) (interfaces.KeyCache, interfaces.DocumentVersion, error) {
	store, err := r.store(region)
	if err != nil {
		return nil, interfaces.NoVersion, err
	}
	return store.Load(ctx, region)
}

// Save dispatches to the region's store.
func (r *Router) Save(ctx context.Context, region interfaces.Region, cache interfaces.KeyCache, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error) {
	store, err := r.store(region)
	if err != nil {
		return interfaces.NoVersion, err
	}
	return store.Save(ctx, region, cache, version)
}

// Available reports whether every routed store is reachable.
func (r *Router) Available(ctx context.Context) bool {
	for _, store := range r.stores {
		if !store.Available(ctx) {
			return false
		}
	}
	return true
}

// Name identifies the router in logs.
func (r *Router) Name() string {
	return "router"
}

// LocationURI lists the routed locations.
func (r *Router) LocationURI() string {
	uris := make([]string, 0, len(r.stores))
	for _, store := range r.stores {
		uris = append(uris, store.LocationURI())
	}
	sort.Strings(uris)
	return strings.Join(uris, ",")
}
