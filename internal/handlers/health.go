package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lapaz-movil/transit/internal/observability"
)

// Pinger checks storage connectivity
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves GET /health
type HealthHandler struct {
	db      Pinger
	metrics *observability.Collector
	screens ScreenCounter
}

// ScreenCounter reports the number of mounted screens
type ScreenCounter interface {
	Count() int
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, metrics *observability.Collector, screens ScreenCounter) *HealthHandler {
	return &HealthHandler{db: db, metrics: metrics, screens: screens}
}

// GetHealth handles GET /health
// Reports database connectivity, mounted screens and poll latency
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
		"screens":   h.screens.Count(),
		"polling":   h.metrics.Latency(),
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			response["status"] = "error"
			response["database"] = "disconnected"
			response["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	writeJSON(w, http.StatusOK, response)
}
