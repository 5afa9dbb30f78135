package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"taskapi/internal/logger"
	"taskapi/internal/store"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	stores *store.Stores
	pinger Pinger
}

// New creates a new Handlers instance.
func New(stores *store.Stores, pinger Pinger) *Handlers {
	return &Handlers{
		stores: stores,
		pinger: pinger,
	}
}

// Health pings the store.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		logger.Sugar.FromContext(ctx).Infof("health check failed: %v", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseID extracts a record id from URL parameters. Anything that is not a
// positive integer cannot name a record.
func parseID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Infof("write response: %v", err)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

// respondServerError logs err and answers with a generic message, so store
// details never reach the caller.
func respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Sugar.FromContext(r.Context()).Errorf("internal server error: %s %s: %v", r.Method, r.URL.Path, err)
	respondError(w, http.StatusInternalServerError, "internal server error")
}

// respondStoreError maps an adapter error to its status code.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var herr store.HTTPError
	if errors.As(err, &herr) && herr.StatusCode() < http.StatusInternalServerError {
		respondError(w, herr.StatusCode(), herr.Error())
		return
	}
	respondServerError(w, r, err)
}
