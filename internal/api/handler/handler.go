// Package handler provides HTTP handlers for the control and read APIs.
// Control handlers drive the session manager; read handlers query the store
// and cache encoded responses with ETags.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/session"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/tracked"
)

// Sessions is the part of the session manager the control API drives.
type Sessions interface {
	Start(eventID string) (*session.StartResult, error)
	Stop(eventID string) []string
	StopAll() []string
	Status() []session.Snapshot
	Events() ([]tracked.Event, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store    store.Store
	sessions Sessions
	cache    *cache.Cache
	cfg      *config.Config
	logger   *slog.Logger
	started  time.Time
}

// New creates a Handler with shared dependencies.
func New(s store.Store, sessions Sessions, c *cache.Cache, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		sessions: sessions,
		cache:    c,
		cfg:      cfg,
		logger:   logger,
		started:  time.Now(),
	}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":      "EventCentral",
		"version":   "1.0.0",
		"status":    "running",
		"docs":      "/docs",
		"transport": h.cfg.Transport,
	})
}

// HealthCheck reports liveness and session counts.
// @Summary Health check
// @Description Returns status, the number of known sessions and how many are running.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snaps := h.sessions.Status()
	running := 0
	for _, s := range snaps {
		if s.State == session.StateRunning || s.State == session.StateIdle {
			running++
		}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"sessions":       len(snaps),
		"running":        running,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// serveCached answers from the cache when it can, otherwise builds the
// value, encodes it and caches the bytes. A matching If-None-Match gets 304.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, build func() (interface{}, error)) {
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	v, err := build()
	if err != nil {
		h.logger.Error("Read query failed", "key", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to load data")
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Failed to encode response")
		return
	}
	etag := h.cache.Set(key, data, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}
