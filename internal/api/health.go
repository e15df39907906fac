package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by the run ledger.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	ledger    Pinger
	storage   string
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health handler. ledger may be nil when no
// database is configured.
func NewHealthHandler(ledger Pinger, storageType, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		ledger:    ledger,
		storage:   storageType,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"storage": h.storage}
	status := "healthy"

	// A ledger outage degrades the run but never stops it.
	if h.ledger != nil {
		if err := h.ledger.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
