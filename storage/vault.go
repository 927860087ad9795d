package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// vaultBackend stores one KV v2 secret per region. The document travels
// base64-encoded under the "document" key; the KV v2 version counter is
// the document version, and saves use the engine's check-and-set option so
// a concurrent writer on another host loses cleanly with a version
// conflict instead of silently overwriting.
type vaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationStr string
}

// NewVaultStore creates a cache store backed by a HashiCorp Vault KV v2
// secrets engine.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path prefix within the mount (e.g. "ticket-keys")
//   - token: Vault token; empty falls back to the standard VAULT_TOKEN env
//   - log: structured logger
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*Store, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	b := &vaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationStr: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}
	return newStore(b, log), nil
}

func (b *vaultBackend) secretPath(region interfaces.Region) string {
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, region.String())
}

func (b *vaultBackend) readDocument(ctx context.Context, region interfaces.Region) ([]byte, interfaces.DocumentVersion, error) {
	secret, err := b.client.Logical().ReadWithContext(ctx, b.secretPath(region))
	if err != nil {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrCacheUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: no cache document for region %q", interfaces.ErrCacheUnavailable, region.String())
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: no cache document for region %q", interfaces.ErrCacheUnavailable, region.String())
	}
	encoded, ok := data["document"].(string)
	if !ok {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: secret for region %q has no document field", interfaces.ErrCacheCorrupt, region.String())
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: document field is not base64: %v", interfaces.ErrCacheCorrupt, err)
	}

	version, err := kvVersion(secret.Data["metadata"])
	if err != nil {
		return nil, interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
	}

	return raw, version, nil
}

func (b *vaultBackend) writeDocument(ctx context.Context, region interfaces.Region, data []byte, version interfaces.DocumentVersion) (interfaces.DocumentVersion, error) {
	// KV v2 check-and-set: cas=0 only allows creation, cas=N requires the
	// current version to be exactly N.
	cas := 0
	if version != interfaces.NoVersion {
		n, err := strconv.Atoi(string(version))
		if err != nil {
			return interfaces.NoVersion, fmt.Errorf("%w: malformed document version %q", interfaces.ErrPersistence, string(version))
		}
		cas = n
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"document": base64.StdEncoding.EncodeToString(data),
		},
		"options": map[string]interface{}{
			"cas": cas,
		},
	}

	secret, err := b.client.Logical().WriteWithContext(ctx, b.secretPath(region), payload)
	if err != nil {
		if strings.Contains(err.Error(), "check-and-set") {
			return interfaces.NoVersion, fmt.Errorf("%w: document for region %q changed since load", interfaces.ErrVersionConflict, region.String())
		}
		return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}

	if secret == nil || secret.Data == nil {
		return interfaces.NoVersion, fmt.Errorf("%w: vault returned no version metadata", interfaces.ErrPersistence)
	}
	newVersion, err := kvVersion(secret.Data)
	if err != nil {
		return interfaces.NoVersion, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}
	return newVersion, nil
}

func (b *vaultBackend) available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		b.log.Debug("Vault cache store unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

func (b *vaultBackend) name() string {
	return fmt.Sprintf("vault-%s", b.mountPath)
}

func (b *vaultBackend) locationURI() string {
	return b.locationStr
}

// kvVersion extracts the KV v2 version counter from secret metadata.
func kvVersion(metadata interface{}) (interfaces.DocumentVersion, error) {
	meta, ok := metadata.(map[string]interface{})
	if !ok {
		return interfaces.NoVersion, fmt.Errorf("missing KV metadata")
	}
	switch v := meta["version"].(type) {
	case json.Number:
		return interfaces.DocumentVersion(v.String()), nil
	case float64:
		return interfaces.DocumentVersion(strconv.Itoa(int(v))), nil
	default:
		return interfaces.NoVersion, fmt.Errorf("missing KV version in metadata")
	}
}
