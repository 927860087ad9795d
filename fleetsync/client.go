package fleetsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// Protocol commands understood by instance agents.
const (
	cmdKeyList = "key-list"
	cmdKeyShow = "key-show"
	cmdKeySet  = "key-set"
)

// Error codes an instance may answer with on its status line.
const (
	codeUnknownKey = "unknown-key"
	codeRejected   = "rejected"
)

// Client issues key synchronization commands to individual instances over
// a RuntimeChannel. It never touches seed files or the persisted cache;
// its writes affect only the volatile runtime window of the addressed
// instance.
type Client struct {
	channel interfaces.RuntimeChannel
	log     *slog.Logger
}

// NewClient creates a sync client over the given channel.
func NewClient(channel interfaces.RuntimeChannel, log *slog.Logger) *Client {
	return &Client{channel: channel, log: log}
}

// ListAll returns the key entries the instance self-reports as tracked.
func (c *Client) ListAll(ctx context.Context, instance interfaces.InstanceInfo) ([]interfaces.KeyEntry, error) {
	lines, err := c.channel.Exec(ctx, instance, cmdKeyList)
	if err != nil {
		return nil, err
	}
	payload, err := parseStatus(instance, lines)
	if err != nil {
		return nil, err
	}

	entries := make([]interfaces.KeyEntry, 0, len(payload))
	for _, line := range payload {
		id, description, _ := strings.Cut(line, "\t")
		keyID, err := interfaces.NewKeyID(id)
		if err != nil {
			return nil, fmt.Errorf("instance %s reported malformed key id %q: %w", instance.Name, id, err)
		}
		entries = append(entries, interfaces.KeyEntry{KeyID: keyID, Description: description})
	}
	return entries, nil
}

// ListOne returns the runtime key window the instance holds for keyID.
// Returns ErrNotTracked when the instance does not know the identifier.
func (c *Client) ListOne(ctx context.Context, instance interfaces.InstanceInfo, keyID interfaces.KeyID) (interfaces.RuntimeKeySet, error) {
	if err := keyID.Validate(); err != nil {
		return interfaces.RuntimeKeySet{}, err
	}

	lines, err := c.channel.Exec(ctx, instance, fmt.Sprintf("%s %s", cmdKeyShow, keyID))
	if err != nil {
		return interfaces.RuntimeKeySet{}, err
	}
	payload, err := parseStatus(instance, lines)
	if err != nil {
		return interfaces.RuntimeKeySet{}, err
	}
	if len(payload) != 1 {
		return interfaces.RuntimeKeySet{}, fmt.Errorf("instance %s: expected 1 key window line, got %d", instance.Name, len(payload))
	}

	fields := strings.Fields(payload[0])
	if len(fields) != 3 {
		return interfaces.RuntimeKeySet{}, fmt.Errorf("instance %s: malformed key window %q", instance.Name, payload[0])
	}
	set := interfaces.RuntimeKeySet{
		KeyID:   keyID,
		Former:  interfaces.KeyMaterial(fields[0]),
		Current: interfaces.KeyMaterial(fields[1]),
		Next:    interfaces.KeyMaterial(fields[2]),
	}
	for _, material := range []interfaces.KeyMaterial{set.Former, set.Current, set.Next} {
		if err := material.Validate(); err != nil {
			return interfaces.RuntimeKeySet{}, fmt.Errorf("instance %s reported invalid key material: %w", instance.Name, err)
		}
	}
	return set, nil
}

// Insert pushes material to the instance, which ages its runtime window
// (current becomes former, next becomes current, material becomes next).
// The operation is not idempotent: a duplicate Insert of the same material
// shifts the window again. Retry drivers must consult a CompletionSet
// before re-sending.
func (c *Client) Insert(ctx context.Context, instance interfaces.InstanceInfo, keyID interfaces.KeyID, material interfaces.KeyMaterial) error {
	if err := keyID.Validate(); err != nil {
		return err
	}
	if err := material.Validate(); err != nil {
		return err
	}

	lines, err := c.channel.Exec(ctx, instance, fmt.Sprintf("%s %s %s", cmdKeySet, keyID, material))
	if err != nil {
		return err
	}
	if _, err := parseStatus(instance, lines); err != nil {
		return err
	}

	c.log.Debug("inserted key on instance",
		slog.String("instance", instance.Name),
		slog.String("key_id", keyID.String()),
		slog.String("fingerprint", material.Fingerprint()))
	return nil
}

// parseStatus interprets the status line and returns the payload lines.
// ERR codes map onto the error taxonomy; the full detail text is carried
// through so operators see the instance's own wording.
func parseStatus(instance interfaces.InstanceInfo, lines []string) ([]string, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("instance %s returned an empty response", instance.Name)
	}
	status, rest, _ := strings.Cut(lines[0], " ")
	switch status {
	case "OK":
		return lines[1:], nil
	case "ERR":
		code, detail, _ := strings.Cut(rest, " ")
		switch code {
		case codeUnknownKey:
			return nil, fmt.Errorf("%w: instance %s: %s", interfaces.ErrNotTracked, instance.Name, detail)
		case codeRejected:
			return nil, fmt.Errorf("%w: instance %s: %s", interfaces.ErrRejectedByInstance, instance.Name, detail)
		default:
			return nil, fmt.Errorf("instance %s answered with unknown error code %q: %s", instance.Name, code, detail)
		}
	default:
		return nil, fmt.Errorf("instance %s answered with malformed status line %q", instance.Name, lines[0])
	}
}
