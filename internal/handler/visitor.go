package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/lifeline/internal/service"
)

// CountResponse is the body of both visitor endpoints.
type CountResponse struct {
	Count int64 `json:"count"`
}

// VisitorHandler serves the public visit counter. No auth.
type VisitorHandler struct {
	visitors *service.VisitorService
	logger   *slog.Logger
}

// NewVisitorHandler creates a new VisitorHandler.
func NewVisitorHandler(visitors *service.VisitorService, logger *slog.Logger) *VisitorHandler {
	return &VisitorHandler{visitors: visitors, logger: logger}
}

// HandleIncrement records a visit.
//
// HTTP: POST /api/visitors/increment
func (h *VisitorHandler) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	n, err := h.visitors.Increment(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HandleCount reads the counter.
//
// HTTP: GET /api/visitors/count
func (h *VisitorHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.visitors.Count(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}
