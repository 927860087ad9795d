package api

import (
	"time"

	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/rotation"
)

// RotationProvider abstracts the rotation server for command-line drivers
// and tests.
type RotationProvider interface {
	// Rotate rotates one ring in one region.
	Rotate(region interfaces.Region, req RotateRequest) (*RotateResponse, error)

	// Ring returns a ring's fingerprint summary.
	Ring(region interfaces.Region, keyID interfaces.KeyID) (*RingSummary, error)

	// Push distributes a ring's newest key to the region's fleet.
	Push(region interfaces.Region, req PushRequest) (*PushResponse, error)
}

// RotateRequest asks the server to rotate one ring. A candidate is
// optional; when absent the server generates fresh material. The rotation
// cooldown is server policy and cannot be influenced per request.
type RotateRequest struct {
	// KeyID identifies the ring within the region.
	KeyID string `json:"key_id"`

	// Candidate is optional base64-encoded 48-byte key material to admit.
	Candidate string `json:"candidate,omitempty"`
}

// RingSummary describes a ring without exposing raw key material. Slots
// carry key fingerprints only (first 8 bytes of SHA-256, hex).
type RingSummary struct {
	KeyID        string    `json:"key_id"`
	LastRotation time.Time `json:"last_rotation"`
	First        string    `json:"first"`
	Second       string    `json:"second"`
	Third        string    `json:"third"`
}

// NewRingSummary converts a ring to its fingerprint-only form.
func NewRingSummary(ring interfaces.KeyRing) RingSummary {
	return RingSummary{
		KeyID:        ring.KeyID.String(),
		LastRotation: ring.LastRotation,
		First:        ring.Slots.Oldest.Fingerprint(),
		Second:       ring.Slots.Current.Fingerprint(),
		Third:        ring.Slots.Newest.Fingerprint(),
	}
}

// RotateResponse reports a rotation outcome. Evicted is the fingerprint
// of the key that left the window, present only when status is "rotated".
type RotateResponse struct {
	Status       string      `json:"status"`
	Ring         RingSummary `json:"ring"`
	Evicted      string      `json:"evicted,omitempty"`
	NextEligible time.Time   `json:"next_eligible"`
}

// NewRotateResponse converts an engine outcome to its API form.
func NewRotateResponse(outcome rotation.Outcome) RotateResponse {
	resp := RotateResponse{
		Status:       string(outcome.Status),
		Ring:         NewRingSummary(outcome.Ring),
		NextEligible: outcome.NextEligible,
	}
	if outcome.Status == rotation.StatusRotated {
		resp.Evicted = outcome.EvictedKey.Fingerprint()
	}
	return resp
}

// PushRequest asks the server to push a ring's newest key to the region's
// fleet. Instances optionally narrows the push to named inventory entries.
type PushRequest struct {
	KeyID     string   `json:"key_id"`
	Instances []string `json:"instances,omitempty"`
}

// PushResult is the outcome for one instance. Err is empty on success.
type PushResult struct {
	Instance string `json:"instance"`
	Err      string `json:"err,omitempty"`
}

// PushResponse aggregates per-instance push outcomes. Partial success is
// reported with status 200; callers inspect the results.
type PushResponse struct {
	KeyID       string       `json:"key_id"`
	Fingerprint string       `json:"fingerprint"`
	Results     []PushResult `json:"results"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
