package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/service"
)

// CategoryHandler serves /api/categories. Every route sits behind
// RequireAuth and only ever touches the caller's own rows.
type CategoryHandler struct {
	categories *service.CategoryService
	logger     *slog.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categories *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

// HandleList returns the caller's categories.
//
// HTTP: GET /api/categories
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	categories, err := h.categories.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// HandleCreate creates a category.
//
// HTTP: POST /api/categories
// REQUEST BODY: {"name": "Health", "color": "#16a34a"}   (color optional)
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in model.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	category, err := h.categories.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// HandleReplace renames and recolors a category.
//
// HTTP: PUT /api/categories/{id}
func (h *CategoryHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var in model.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	category, err := h.categories.Replace(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// HandleDelete removes a category. Events keep their categoryId.
//
// HTTP: DELETE /api/categories/{id}
// RESPONSE: 204 No Content, also for ids that are missing or not yours.
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.categories.Delete(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
