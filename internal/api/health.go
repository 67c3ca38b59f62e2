package api

import (
	"net/http"
	"time"

	"github.com/nongjianweihao/share-car/internal/api/respond"
)

// ServiceHealth is the cached service health the handler reports.
type ServiceHealth interface {
	IsHealthy() bool
	Components() map[string]bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	svc ServiceHealth
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(svc ServiceHealth) *HealthHandler { return &HealthHandler{svc: svc} }

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.svc.IsHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": h.svc.Components(),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
