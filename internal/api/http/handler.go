package http

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/Confuzu/CivitAI-Downloader/internal/progress"
)

// StatusProvider exposes a point-in-time view of the running download
// job. The progress reporter implements it.
type StatusProvider interface {
	Snapshot() progress.Snapshot
}

// StatusHandler serves read-only status requests. It never influences
// download control flow.
type StatusHandler struct {
	status StatusProvider
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler over the provided source.
func NewStatusHandler(status StatusProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{status: status, logger: logger}
}

// GetStatus handles GET /status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
