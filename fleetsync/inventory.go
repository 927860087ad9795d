package fleetsync

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// RegionConfig is one region's entry in the fleet inventory: where its
// key cache lives and which instances must receive pushed keys.
type RegionConfig struct {
	CacheURI  string                    `yaml:"cache_uri"`
	Instances []interfaces.InstanceInfo `yaml:"instances"`
}

// Inventory is the static fleet description. Instance discovery is out of
// scope; this file is the single source of fleet membership.
type Inventory struct {
	Regions map[interfaces.Region]RegionConfig `yaml:"regions"`
}

// LoadInventory reads and validates a YAML inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}
	return ParseInventory(data)
}

// ParseInventory parses and validates inventory YAML.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: parsing inventory: %v", interfaces.ErrInvalidArgument, err)
	}
	if len(inv.Regions) == 0 {
		return nil, fmt.Errorf("%w: inventory defines no regions", interfaces.ErrInvalidArgument)
	}

	for region, cfg := range inv.Regions {
		if err := region.Validate(); err != nil {
			return nil, err
		}
		if cfg.CacheURI != "" {
			if _, err := interfaces.NewCacheStoreLocation(cfg.CacheURI); err != nil {
				return nil, fmt.Errorf("region %s: %w", region, err)
			}
		}
		for i := range cfg.Instances {
			if err := cfg.Instances[i].Validate(); err != nil {
				return nil, fmt.Errorf("region %s: %w", region, err)
			}
		}
		inv.Regions[region] = cfg
	}
	return &inv, nil
}

// Region returns one region's configuration.
func (inv *Inventory) Region(region interfaces.Region) (RegionConfig, error) {
	cfg, ok := inv.Regions[region]
	if !ok {
		return RegionConfig{}, fmt.Errorf("%w: region %s not in inventory", interfaces.ErrInvalidArgument, region)
	}
	return cfg, nil
}

// RegionNames returns the configured regions in sorted order.
func (inv *Inventory) RegionNames() []interfaces.Region {
	out := make([]interfaces.Region, 0, len(inv.Regions))
	for region := range inv.Regions {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SelectInstances returns the region's instances filtered by name. An
// empty filter selects all of them; an unknown name is an error so typos
// never silently shrink a push.
func (cfg RegionConfig) SelectInstances(names []string) ([]interfaces.InstanceInfo, error) {
	if len(names) == 0 {
		return cfg.Instances, nil
	}
	byName := make(map[string]interfaces.InstanceInfo, len(cfg.Instances))
	for _, instance := range cfg.Instances {
		byName[instance.Name] = instance
	}
	out := make([]interfaces.InstanceInfo, 0, len(names))
	for _, name := range names {
		instance, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown instance %q", interfaces.ErrInvalidArgument, name)
		}
		out = append(out, instance)
	}
	return out, nil
}
