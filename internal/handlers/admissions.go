package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// AdmissionReader reads admission records from the dedup cache.
type AdmissionReader interface {
	Lookup(ctx context.Context, key string) (time.Duration, bool, error)
}

// AdmissionResponse describes one fingerprint in the cache. TTLMs is zero
// for a key with no expiry.
type AdmissionResponse struct {
	Key     string `json:"key"`
	Present bool   `json:"present"`
	TTLMs   int64  `json:"ttl_ms"`
}

// AdmissionHandler handles GET /admissions/{key}.
//
// It never writes to the cache, so looking a key up does not admit it.
type AdmissionHandler struct {
	cache  AdmissionReader
	logger *slog.Logger
}

// NewAdmissionHandler creates a new admission lookup handler.
func NewAdmissionHandler(cache AdmissionReader, logger *slog.Logger) *AdmissionHandler {
	return &AdmissionHandler{
		cache:  cache,
		logger: logger.With("handler", "admissions"),
	}
}

// ServeHTTP handles the admission lookup request.
func (h *AdmissionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "missing_parameter",
			Message: "key is required",
		})
		return
	}

	ttl, ok, err := h.cache.Lookup(r.Context(), key)
	if err != nil {
		h.logger.Error("cache_read_failed", "key", key, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "backend_unavailable",
			Message: "failed to read from cache",
		})
		return
	}

	if !ok {
		h.logger.Debug("key_not_admitted", "key", key)
		writeJSON(w, http.StatusNotFound, AdmissionResponse{Key: key})
		return
	}

	writeJSON(w, http.StatusOK, AdmissionResponse{Key: key, Present: true, TTLMs: ttl.Milliseconds()})
}
