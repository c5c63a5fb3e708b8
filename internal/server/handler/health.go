package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusInfo is the static part of the status response.
type StatusInfo struct {
	Mode         string
	Liquidator   string
	Receiver     string
	RelayEnabled bool
	Aggregator   bool
}

// HealthHandler serves the health and status endpoints.
type HealthHandler struct {
	info      StatusInfo
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(info StatusInfo, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{info: info, startedAt: time.Now().UTC(), logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus reports the bot's mode, accounts and enabled submission paths.
// GET /api/status
func (h *HealthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.info.Mode,
		"liquidator":     h.info.Liquidator,
		"receiver":       h.info.Receiver,
		"relay_enabled":  h.info.RelayEnabled,
		"aggregator":     h.info.Aggregator,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
