package handlers

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	service string
	version string
	logger  *slog.Logger
}

func NewHealthHandler(service, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{service: service, version: version, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   h.service,
		"version":   h.version,
	})
}
