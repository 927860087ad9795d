package fleetsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

const sampleInventory = `
regions:
  us-east-1:
    cache_uri: file:///var/lib/ticketd/cache
    instances:
      - name: lb-1
        addr: 10.0.0.1:9999
      - name: lb-2
        addr: 10.0.0.2:9999
        network: tcp
  eu-west-1:
    cache_uri: mem://local
    instances:
      - name: lb-3
        addr: /run/ticketd/lb-3.sock
        network: unix
`

func TestParseInventory(t *testing.T) {
	inv, err := ParseInventory([]byte(sampleInventory))
	require.NoError(t, err)

	assert.Equal(t, []interfaces.Region{"eu-west-1", "us-east-1"}, inv.RegionNames())

	cfg, err := inv.Region("us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "file:///var/lib/ticketd/cache", cfg.CacheURI)
	require.Len(t, cfg.Instances, 2)
	assert.Equal(t, "tcp", cfg.Instances[0].Network, "network defaults to tcp")

	cfg, err = inv.Region("eu-west-1")
	require.NoError(t, err)
	require.Len(t, cfg.Instances, 1)
	assert.Equal(t, "unix", cfg.Instances[0].Network)
}

func TestLoadInventoryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleInventory), 0o600))

	inv, err := LoadInventory(path)
	require.NoError(t, err)
	assert.Len(t, inv.Regions, 2)
}

func TestParseInventoryRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "{{nope"},
		{"no regions", "regions: {}"},
		{"bad region name", "regions:\n  US_EAST:\n    instances:\n      - name: lb-1\n        addr: 10.0.0.1:9999\n"},
		{"instance without addr", "regions:\n  us-east-1:\n    instances:\n      - name: lb-1\n"},
		{"instance without name", "regions:\n  us-east-1:\n    instances:\n      - addr: 10.0.0.1:9999\n"},
		{"bad network", "regions:\n  us-east-1:\n    instances:\n      - name: lb-1\n        addr: 10.0.0.1:9999\n        network: sctp\n"},
		{"bad cache uri", "regions:\n  us-east-1:\n    cache_uri: ftp://nope\n    instances:\n      - name: lb-1\n        addr: 10.0.0.1:9999\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInventory([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegionUnknown(t *testing.T) {
	inv, err := ParseInventory([]byte(sampleInventory))
	require.NoError(t, err)

	_, err = inv.Region("ap-south-1")
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}

func TestSelectInstances(t *testing.T) {
	inv, err := ParseInventory([]byte(sampleInventory))
	require.NoError(t, err)
	cfg, err := inv.Region("us-east-1")
	require.NoError(t, err)

	all, err := cfg.SelectInstances(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	subset, err := cfg.SelectInstances([]string{"lb-2"})
	require.NoError(t, err)
	require.Len(t, subset, 1)
	assert.Equal(t, "lb-2", subset[0].Name)

	_, err = cfg.SelectInstances([]string{"lb-9"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}
