package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/service"
)

// EventHandler serves /api/events and the stats view built from them.
type EventHandler struct {
	events *service.EventService
	logger *slog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// HandleList returns the caller's events.
//
// HTTP: GET /api/events?category=all|{id}&sort=newest|oldest|highest|lowest
//
// Without query parameters events come back in their stored order.
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := service.EventQuery{
		Category: r.URL.Query().Get("category"),
		Sort:     r.URL.Query().Get("sort"),
	}
	events, err := h.events.List(r.Context(), userID, q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleCreate creates an event.
//
// HTTP: POST /api/events
// REQUEST BODY:
//
//	{"categoryId": 1, "date": "2024-05-01", "title": "...",
//	 "description": null, "score": 75, "order": 0}
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in model.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	event, err := h.events.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// HandleUpdate applies a partial update.
//
// HTTP: PATCH /api/events/{id}
//
// Only the fields present in the body change. "categoryId": null and
// "description": null clear those fields.
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	event, err := h.events.Update(r.Context(), userID, id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleDelete removes an event.
//
// HTTP: DELETE /api/events/{id}
// RESPONSE: 204 No Content, also for ids that are missing or not yours.
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.events.Delete(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExport returns the caller's journal as plain text.
//
// HTTP: GET /api/events/export
func (h *EventHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	text, err := h.events.Export(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="lifeline.txt"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Warn("writing export", slog.String("error", err.Error()))
	}
}

// HandleStats returns per-category statistics.
//
// HTTP: GET /api/stats/categories
func (h *EventHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.events.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
