package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger defines the interface for checking a dependency's connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a new health handler. The cache pinger may be nil
// when the service runs without Redis.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{
		db:    db,
		cache: cache,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Uptime string            `json:"uptime,omitempty"`
}

var startTime = time.Now()

// GetHealth handles GET /health
// Basic health check - returns 200 OK if service is running
func GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(startTime).String(),
	})
}

// GetLiveness handles GET /health/live
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// GetReadiness handles GET /health/ready
// Readiness probe - the database must be reachable to accept traffic
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetHealthDetailed handles GET /health/detailed
// Includes per-dependency connectivity checks. A rate cache outage degrades
// the service but does not take it down: resolution falls through to the
// persisted layer.
func (h *HealthHandler) GetHealthDetailed(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "ok"
	httpStatus := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "healthy"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["rate_cache"] = "unhealthy: " + err.Error()
			if status == "ok" {
				status = "degraded"
			}
		} else {
			checks["rate_cache"] = "healthy"
		}
	}

	respondJSON(w, httpStatus, HealthResponse{
		Status: status,
		Checks: checks,
		Uptime: time.Since(startTime).String(),
	})
}
