package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/keyfleet/ticket-key-service/api"
	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/fleetsync"
	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/rotation"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes the rotation API requests. It owns the single write
// path into the persisted key caches and the push path out to the fleet.
type Handler struct {
	coordinator *rotation.Coordinator
	inventory   *fleetsync.Inventory
	pusher      *fleetsync.Pusher
	log         *slog.Logger

	// completions dedupes pushes per (region, key id, material), so a
	// re-issued push request never re-sends to an instance that already
	// accepted that exact key.
	mu          sync.Mutex
	completions map[string]*fleetsync.CompletionSet
}

// NewHandler creates an API handler.
func NewHandler(coordinator *rotation.Coordinator, inventory *fleetsync.Inventory, pusher *fleetsync.Pusher, log *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		inventory:   inventory,
		pusher:      pusher,
		log:         log,
		completions: make(map[string]*fleetsync.CompletionSet),
	}
}

// HandleRotate processes rotation requests.
//
// URL format: POST /api/v1/regions/{region}/keys/rotate
//
// Request body: JSON RotateRequest. The candidate is optional; absent, the
// server generates fresh material. A "too_soon" outcome is returned with
// status 200, it is not an error.
func (h *Handler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	region, err := parseRegion(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: reading request body: %v", interfaces.ErrInvalidArgument, err))
		return
	}

	var req api.RotateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: invalid request body: %v", interfaces.ErrInvalidArgument, err))
		return
	}

	keyID, err := interfaces.NewKeyID(req.KeyID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var candidate *interfaces.KeyMaterial
	if req.Candidate != "" {
		material, err := cryptoutils.NewKeyMaterial(req.Candidate)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		m := interfaces.KeyMaterial(material)
		candidate = &m
	}

	outcome, err := h.coordinator.RotateKey(r.Context(), region, keyID, candidate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, api.NewRotateResponse(outcome))
}

// HandleRing returns a ring's fingerprint summary.
//
// URL format: GET /api/v1/regions/{region}/keys?key_id=...
func (h *Handler) HandleRing(w http.ResponseWriter, r *http.Request) {
	region, err := parseRegion(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	keyID, err := interfaces.NewKeyID(r.URL.Query().Get("key_id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	ring, err := h.coordinator.Ring(r.Context(), region, keyID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, api.NewRingSummary(ring))
}

// HandlePush distributes a ring's newest key to the region's fleet.
//
// URL format: POST /api/v1/regions/{region}/keys/push
//
// Partial success is a 200 with per-instance errors in the body. Instances
// that accepted this exact key in an earlier push are skipped.
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	region, err := parseRegion(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: reading request body: %v", interfaces.ErrInvalidArgument, err))
		return
	}

	var req api.PushRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: invalid request body: %v", interfaces.ErrInvalidArgument, err))
		return
	}

	keyID, err := interfaces.NewKeyID(req.KeyID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	regionCfg, err := h.inventory.Region(region)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	instances, err := regionCfg.SelectInstances(req.Instances)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	ring, err := h.coordinator.Ring(r.Context(), region, keyID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	material := ring.Slots.Newest
	done := h.completionSet(region, keyID, material)
	report := h.pusher.PushWithRetries(r.Context(), instances, keyID, material, 1, done)

	resp := api.PushResponse{
		KeyID:       keyID.String(),
		Fingerprint: material.Fingerprint(),
		Results:     make([]api.PushResult, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		result := api.PushResult{Instance: res.Instance.Name}
		if res.Err != nil {
			result.Err = res.Err.Error()
		}
		resp.Results = append(resp.Results, result)
	}

	h.log.Info("fleet push completed",
		slog.String("region", region.String()),
		slog.String("key_id", keyID.String()),
		slog.String("fingerprint", material.Fingerprint()),
		slog.Int("succeeded", len(report.Succeeded())),
		slog.Int("failed", len(report.Failed())))

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) completionSet(region interfaces.Region, keyID interfaces.KeyID, material interfaces.KeyMaterial) *fleetsync.CompletionSet {
	key := fmt.Sprintf("%s/%s/%s", region, keyID, material.Fingerprint())
	h.mu.Lock()
	defer h.mu.Unlock()
	done, ok := h.completions[key]
	if !ok {
		done = fleetsync.NewCompletionSet()
		h.completions[key] = done
	}
	return done
}

func parseRegion(r *http.Request) (interfaces.Region, error) {
	return interfaces.NewRegion(r.PathValue("region"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrInvalidKeyFormat),
		errors.Is(err, interfaces.ErrInvalidArgument),
		errors.Is(err, interfaces.ErrSeedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, interfaces.ErrKeyIDNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interfaces.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, interfaces.ErrCorruptRingState),
		errors.Is(err, interfaces.ErrCacheCorrupt):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, interfaces.ErrCacheUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
	} else {
		log.Debug("request rejected", "err", err, "status", status)
	}
	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
