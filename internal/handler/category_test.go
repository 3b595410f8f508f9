package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/timeline"
)

func TestCategoryHandler_CRUD(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/categories", 1, `{"name":"Work","color":"#2563EB"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	work := decode[model.Category](t, rr)
	assert.Equal(t, "#2563eb", work.Color)

	// No color: next free palette entry.
	rr = api.do(t, http.MethodPost, "/api/categories", 1, `{"name":"Family"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	family := decode[model.Category](t, rr)
	assert.Equal(t, timeline.Palette[1], family.Color)

	rr = api.do(t, http.MethodPut, fmt.Sprintf("/api/categories/%d", work.ID), 1, `{"name":"Career","color":"#9333ea"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Career", decode[model.Category](t, rr).Name)

	list := decode[[]model.Category](t, api.do(t, http.MethodGet, "/api/categories", 1, ""))
	require.Len(t, list, 2)
	assert.Equal(t, "Career", list[0].Name)

	rr = api.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", family.ID), 1, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	list = decode[[]model.Category](t, api.do(t, http.MethodGet, "/api/categories", 1, ""))
	assert.Len(t, list, 1)
}

func TestCategoryHandler_Validation(t *testing.T) {
	api := newTestAPI(t)

	for _, body := range []string{`{"name":""}`, `{"name":"x","color":"#000000"}`, `not json`} {
		rr := api.do(t, http.MethodPost, "/api/categories", 1, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	rr := api.do(t, http.MethodPut, "/api/categories/nope", 1, `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = api.do(t, http.MethodDelete, "/api/categories/nope", 1, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCategoryHandler_NoCrossUserAccess(t *testing.T) {
	api := newTestAPI(t)

	cat := decode[model.Category](t, api.do(t, http.MethodPost, "/api/categories", 1, `{"name":"Private"}`))
	path := fmt.Sprintf("/api/categories/%d", cat.ID)

	assert.JSONEq(t, `[]`, api.do(t, http.MethodGet, "/api/categories", 2, "").Body.String())
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPut, path, 2, `{"name":"Mine"}`).Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, path, 2, "").Code)

	list := decode[[]model.Category](t, api.do(t, http.MethodGet, "/api/categories", 1, ""))
	require.Len(t, list, 1)
	assert.Equal(t, "Private", list[0].Name)
}

func TestCategoryHandler_DeleteKeepsEventCategoryID(t *testing.T) {
	api := newTestAPI(t)

	cat := decode[model.Category](t, api.do(t, http.MethodPost, "/api/categories", 1, `{"name":"Travel"}`))
	body := fmt.Sprintf(`{"categoryId":%d,"date":"2024-06-01","title":"Lisbon","description":null,"score":85,"order":0}`, cat.ID)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/events", 1, body).Code)

	require.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", cat.ID), 1, "").Code)

	list := decode[[]model.Event](t, api.do(t, http.MethodGet, "/api/events", 1, ""))
	require.Len(t, list, 1)
	require.NotNil(t, list[0].CategoryID)
	assert.Equal(t, cat.ID, *list[0].CategoryID)
}
