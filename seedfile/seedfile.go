// Package seedfile reads and writes ticket key seed files.
//
// A seed file holds exactly three base64-encoded 48-byte keys, one per
// line, ordered oldest to newest. Files with any other line count are
// rejected outright rather than padded or truncated.
package seedfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

// Read loads a seed file and returns its three keys ordered oldest to
// newest. Each line is stripped of trailing whitespace before decoding.
// Format errors name the offending 1-based line.
func Read(path string) ([3]interfaces.KeyMaterial, error) {
	var keys [3]interfaces.KeyMaterial

	data, err := os.ReadFile(path)
	if err != nil {
		return keys, fmt.Errorf("reading seed file %s: %w", path, err)
	}

	content := strings.TrimRight(string(data), "\r\n")
	if content == "" {
		return keys, fmt.Errorf("%w: %s: expected 3 lines, got 0", interfaces.ErrSeedFormat, path)
	}

	lines := strings.Split(content, "\n")
	if len(lines) != 3 {
		return keys, fmt.Errorf("%w: %s: expected 3 lines, got %d", interfaces.ErrSeedFormat, path, len(lines))
	}

	for i, line := range lines {
		key, err := cryptoutils.NewKeyMaterial(strings.TrimRight(line, " \t\r"))
		if err != nil {
			return keys, fmt.Errorf("%w: %s: line %d: %v", interfaces.ErrSeedFormat, path, i+1, err)
		}
		keys[i] = interfaces.KeyMaterial(key)
	}

	return keys, nil
}

// Write stores three keys as a seed file, oldest to newest. The file is
// written atomically with 0600 permissions.
func Write(path string, keys [3]interfaces.KeyMaterial) error {
	var sb strings.Builder
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrInvalidArgument, err)
		}
		sb.WriteString(key.String())
		sb.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".seed-*")
	if err != nil {
		return fmt.Errorf("creating temp seed file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp seed file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp seed file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp seed file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("setting seed file permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing seed file %s: %w", path, err)
	}
	return nil
}

// Generate creates three fresh keys and writes them as a new seed file.
func Generate(path string) ([3]interfaces.KeyMaterial, error) {
	var keys [3]interfaces.KeyMaterial
	for i := range keys {
		key, err := cryptoutils.GenerateKeyMaterial()
		if err != nil {
			return keys, fmt.Errorf("generating seed key: %w", err)
		}
		keys[i] = interfaces.KeyMaterial(key)
	}
	if err := Write(path, keys); err != nil {
		return keys, err
	}
	return keys, nil
}
