package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/lifeline/internal/config"
	"github.com/sakif/lifeline/internal/server"
)

type captureMailer struct {
	mu  sync.Mutex
	url string
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, _, verifyURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = verifyURL
	return nil
}

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

func testConfig() config.Config {
	return config.Config{
		Port:                 8080,
		SessionSecret:        "server-test-secret-0123456789",
		SessionTTL:           time.Hour,
		SessionPurgeInterval: time.Minute,
		AppURL:               "http://app.test",
		AllowedOrigins:       []string{"http://localhost:5173"},
		LoginRateLimit:       100,
	}
}

func newTestServer(t *testing.T, cfg config.Config) (*httptest.Server, *captureMailer) {
	t.Helper()
	mail := &captureMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := server.New(context.Background(), cfg, logger,
		server.WithMailer(mail),
		server.WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mail
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func post(t *testing.T, c *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := c.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, c *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// signUp registers, verifies, and logs in; the client's jar then holds
// the session cookie.
func signUp(t *testing.T, ts *httptest.Server, mail *captureMailer, c *http.Client, name string) {
	t.Helper()
	resp := post(t, c, ts.URL+"/api/register",
		`{"username":"`+name+`","email":"`+name+`@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	verify := strings.Replace(mail.last(), "http://app.test", ts.URL, 1)
	require.Equal(t, http.StatusOK, get(t, c, verify).StatusCode)

	resp = post(t, c, ts.URL+"/api/login", `{"email":"`+name+`@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_FullJourney(t *testing.T) {
	ts, mail := newTestServer(t, testConfig())
	c := newClient(t)

	// Protected routes need a session.
	assert.Equal(t, http.StatusUnauthorized, get(t, c, ts.URL+"/api/events").StatusCode)

	signUp(t, ts, mail, c, "alice")

	resp := post(t, c, ts.URL+"/api/categories", `{"name":"Health"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, c, ts.URL+"/api/events",
		`{"categoryId":null,"date":"2024-05-01","title":"First run","description":null,"score":70,"order":0}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = get(t, c, ts.URL+"/api/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "First run")

	resp = get(t, c, ts.URL+"/api/events/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "First run (Score: 70 - Good)")

	// A second user sees nothing of alice's.
	other := newClient(t)
	signUp(t, ts, mail, other, "bob")
	resp = get(t, other, ts.URL+"/api/events")
	assert.JSONEq(t, `[]`, readBody(t, resp))

	// Logout kills the session.
	require.Equal(t, http.StatusOK, post(t, c, ts.URL+"/api/logout", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, c, ts.URL+"/api/user").StatusCode)
}

func TestServer_VisitorsHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())
	c := newClient(t)

	post(t, c, ts.URL+"/api/visitors/increment", "")
	resp := post(t, c, ts.URL+"/api/visitors/increment", "")
	assert.JSONEq(t, `{"count":2}`, readBody(t, resp))
	assert.JSONEq(t, `{"count":2}`, readBody(t, get(t, c, ts.URL+"/api/visitors/count")))

	resp = get(t, c, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, c, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "lifeline_visitors 2")
	assert.Contains(t, body, "lifeline_http_requests_total")
}

func TestServer_CORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestServer_SecureCookieIsCrossSite(t *testing.T) {
	cfg := testConfig()
	cfg.CookieSecure = true
	ts, mail := newTestServer(t, cfg)
	c := newClient(t)

	resp := post(t, c, ts.URL+"/api/register",
		`{"username":"gail","email":"gail@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	verify := strings.Replace(mail.last(), "http://app.test", ts.URL, 1)
	require.Equal(t, http.StatusOK, get(t, c, verify).StatusCode)

	resp = post(t, c, ts.URL+"/api/login", `{"email":"gail@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
}

func TestServer_FormPostRejected(t *testing.T) {
	ts, mail := newTestServer(t, testConfig())
	c := newClient(t)
	signUp(t, ts, mail, c, "hank")

	body := `{"date":"2024-03-10","title":"Forged","score":1,"order":0}`
	resp, err := c.Post(ts.URL+"/api/events", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	assert.NotContains(t, readBody(t, get(t, c, ts.URL+"/api/events")), "Forged")
}

func TestServer_LoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 2
	ts, _ := newTestServer(t, cfg)
	c := newClient(t)

	body := `{"email":"ghost@example.com","password":"whatever1"}`
	assert.Equal(t, http.StatusUnauthorized, post(t, c, ts.URL+"/api/login", body).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, post(t, c, ts.URL+"/api/login", body).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, post(t, c, ts.URL+"/api/login", body).StatusCode)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, get(t, c, ts.URL+"/api/visitors/count").StatusCode)
}

func TestServer_GitHubRoutesOnlyWhenConfigured(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())
	c := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	assert.Equal(t, http.StatusNotFound, get(t, c, ts.URL+"/auth/github/login").StatusCode)

	cfg := testConfig()
	cfg.GitHubClientID = "id"
	cfg.GitHubClientSecret = "secret"
	cfg.GitHubCallbackURL = "http://app.test/auth/github/callback"
	ts, _ = newTestServer(t, cfg)

	resp := get(t, c, ts.URL+"/auth/github/login")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "github.com/login/oauth/authorize")
}

func TestServer_SQLiteBackend(t *testing.T) {
	cfg := testConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "lifeline.db")
	ts, mail := newTestServer(t, cfg)
	c := newClient(t)

	signUp(t, ts, mail, c, "carol")
	resp := post(t, c, ts.URL+"/api/categories", `{"name":"Work"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Contains(t, readBody(t, get(t, c, ts.URL+"/healthz")), `"sqlite":"ok"`)
}

func TestServer_RandomSecretWhenUnset(t *testing.T) {
	cfg := testConfig()
	cfg.SessionSecret = ""
	ts, mail := newTestServer(t, cfg)
	c := newClient(t)

	signUp(t, ts, mail, c, "dave")
	assert.Equal(t, http.StatusOK, get(t, c, ts.URL+"/api/user").StatusCode)
}
