package handler

import (
	"net/http"
	"time"

	"github.com/radialgames/salessync/store"
)

// HealthHandler implements GET /api/health.
type HealthHandler struct {
	db *store.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *store.Store) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check handles GET /api/health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	status := "healthy"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		dbStatus = "unreachable"
		status = "unhealthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
