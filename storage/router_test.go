package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

func TestRouterDispatchesByRegion(t *testing.T) {
	log := testLogger()
	east := NewMemStore(log)
	west := NewMemStore(log)
	router := NewRouter(map[interfaces.Region]interfaces.CacheStore{
		"us-east-1": east,
		"eu-west-1": west,
	})

	cache := testCache(t, "/etc/lb/ticket.key")
	_, err := router.Save(context.Background(), "us-east-1", cache, interfaces.NoVersion)
	require.NoError(t, err)

	loaded, _, err := router.Load(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	// The other region's store never saw the write.
	_, _, err = west.Load(context.Background(), "eu-west-1")
	assert.ErrorIs(t, err, interfaces.ErrCacheUnavailable)
}

func TestRouterUnknownRegion(t *testing.T) {
	router := NewRouter(map[interfaces.Region]interfaces.CacheStore{})

	_, _, err := router.Load(context.Background(), "ap-south-1")
	assert.ErrorIs(t, err, interfaces.ErrCacheUnavailable)

	_, err = router.Save(context.Background(), "ap-south-1", interfaces.KeyCache{}, interfaces.NoVersion)
	assert.ErrorIs(t, err, interfaces.ErrCacheUnavailable)
}
