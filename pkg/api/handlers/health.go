package handlers

import (
	"net/http"

	"github.com/pineappleswan/treasury/pkg/catalog"
)

// HealthHandler serves the ambient liveness probe.
type HealthHandler struct {
	catalog *catalog.Store
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(store *catalog.Store) *HealthHandler {
	return &HealthHandler{catalog: store}
}

// Liveness implements GET /health: reports the catalog's connectivity.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.HealthCheck(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
