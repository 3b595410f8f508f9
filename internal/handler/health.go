package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a backend /healthz can probe: the SQLite pool or Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness plus the state of external backends.
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks may be empty, in which
// case /healthz always answers 200.
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth runs every check with a short timeout.
//
// HTTP: GET /healthz
// RESPONSE: 200 {"status":"ok"} or 503 {"status":"degraded","checks":{...}}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.String("error", err.Error()))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
