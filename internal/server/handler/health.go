package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	logger *slog.Logger
	hub    interface{ Count() int }
}

// NewHealthHandler creates a HealthHandler with the provided logger and hub.
func NewHealthHandler(logger *slog.Logger, hub interface{ Count() int }) *HealthHandler {
	return &HealthHandler{logger: logger, hub: hub}
}

// HealthCheck responds with a simple JSON status indicating the server is
// alive and how many websocket clients are connected.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"clients":   h.hub.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
