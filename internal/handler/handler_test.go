package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/lifeline/internal/auth"
	"github.com/sakif/lifeline/internal/handler"
	"github.com/sakif/lifeline/internal/repository/memory"
	"github.com/sakif/lifeline/internal/service"
)

// =========================================================================
// TEST HARNESS
// =========================================================================

type recordingMailer struct {
	mu   sync.Mutex
	urls []string
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, _, verifyURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, verifyURL)
	return nil
}

func (m *recordingMailer) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.urls) == 0 {
		return ""
	}
	u := m.urls[len(m.urls)-1]
	return u[strings.Index(u, "token=")+len("token="):]
}

// asUser stands in for RequireAuth: the X-Test-User header names the caller.
// Requests without it carry no identity, so handlers must answer 401.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Test-User"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			r = r.WithContext(auth.WithIdentity(r.Context(), id, "test-session"))
		}
		next.ServeHTTP(w, r)
	})
}

type testAPI struct {
	router   http.Handler
	store    *memory.Store
	mail     *recordingMailer
	sessions *auth.SessionManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	mail := &recordingMailer{}

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	sessions := auth.NewSessionManager(tokens, store, time.Hour)

	authSvc := service.NewAuthService(store, auth.NewPasswordServiceForTest(bcrypt.MinCost), sessions, mail, "http://app.test", nil, logger)
	authH := handler.NewAuthHandler(authSvc, nil, false, logger)
	catH := handler.NewCategoryHandler(service.NewCategoryService(store, logger), logger)
	evH := handler.NewEventHandler(service.NewEventService(store, store, logger), logger)
	visH := handler.NewVisitorHandler(service.NewVisitorService(store, nil), logger)

	r := chi.NewRouter()
	r.Post("/api/register", authH.HandleRegister)
	r.Get("/api/verify-email", authH.HandleVerifyEmail)
	r.Post("/api/login", authH.HandleLogin)
	r.With(auth.OptionalAuth(sessions)).Post("/api/logout", authH.HandleLogout)
	r.With(auth.RequireAuth(sessions)).Get("/api/user", authH.HandleMe)
	r.Post("/api/visitors/increment", visH.HandleIncrement)
	r.Get("/api/visitors/count", visH.HandleCount)

	r.Group(func(r chi.Router) {
		r.Use(asUser)
		r.Get("/api/categories", catH.HandleList)
		r.Post("/api/categories", catH.HandleCreate)
		r.Put("/api/categories/{id}", catH.HandleReplace)
		r.Delete("/api/categories/{id}", catH.HandleDelete)
		r.Get("/api/events", evH.HandleList)
		r.Post("/api/events", evH.HandleCreate)
		r.Get("/api/events/export", evH.HandleExport)
		r.Patch("/api/events/{id}", evH.HandleUpdate)
		r.Delete("/api/events/{id}", evH.HandleDelete)
		r.Get("/api/stats/categories", evH.HandleStats)
	})

	return &testAPI{router: r, store: store, mail: mail, sessions: sessions}
}

// do sends a request as user (0 = anonymous) and returns the recorder.
func (a *testAPI) do(t *testing.T, method, path string, user int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set("X-Test-User", strconv.FormatInt(user, 10))
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rr)
}

// =========================================================================
// VISITORS
// =========================================================================

func TestVisitorHandler(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/api/visitors/count", 0, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0), decode[handler.CountResponse](t, rr).Count)

	for want := int64(1); want <= 3; want++ {
		rr = api.do(t, http.MethodPost, "/api/visitors/increment", 0, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, want, decode[handler.CountResponse](t, rr).Count)
	}

	rr = api.do(t, http.MethodGet, "/api/visitors/count", 0, "")
	assert.Equal(t, int64(3), decode[handler.CountResponse](t, rr).Count)
}

// =========================================================================
// HEALTH
// =========================================================================

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no checks", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.NewHealthHandler(nil, logger).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("failing backend", func(t *testing.T) {
		h := handler.NewHealthHandler(map[string]handler.Pinger{
			"sqlite": pingFunc(func(context.Context) error { return nil }),
			"redis":  pingFunc(func(context.Context) error { return io.ErrUnexpectedEOF }),
		}, logger)

		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), `"sqlite":"ok"`)
		assert.Contains(t, rr.Body.String(), `"degraded"`)
	})
}
