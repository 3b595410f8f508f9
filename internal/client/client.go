// Package client is a typed HTTP client for the lifeline REST API.
//
// The server authenticates with a session cookie. The client keeps the
// cookie value as an opaque token: Login stores it, Logout drops it, and
// callers that want a login to outlive the process persist Token() and
// hand it back through WithToken.
//
// Error responses are decoded into *apperror.AppError with Err set from the
// status code, so errors.Is(err, apperror.ErrNotFound) works on both sides
// of the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/timeline"
)

// SessionCookie must match the name the server sets.
const SessionCookie = "token"

// Client talks to one server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken resumes a session saved from an earlier Login.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, or "" when logged out.
func (c *Client) Token() string { return c.token }

// =========================================================================
// AUTH
// =========================================================================

type messageResponse struct {
	Message string `json:"message"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// Register creates an account and returns the server's confirmation message.
func (c *Client) Register(ctx context.Context, in model.RegisterInput) (string, error) {
	var out messageResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/register", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// VerifyEmail consumes a verification token from the mailed link.
func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	var out messageResponse
	path := "/api/verify-email?token=" + url.QueryEscape(token)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Login starts a session and remembers its token.
func (c *Client) Login(ctx context.Context, in model.LoginInput) (*model.User, error) {
	var user model.User
	resp, err := c.do(ctx, http.MethodPost, "/api/login", in, &user)
	if err != nil {
		return nil, err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie && ck.Value != "" {
			c.token = ck.Value
		}
	}
	if c.token == "" {
		return nil, fmt.Errorf("client: login response carried no session cookie")
	}
	return &user, nil
}

// Logout ends the session on the server and forgets the token. The token is
// dropped even if the request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer func() { c.token = "" }()
	_, err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
	return err
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if _, err := c.do(ctx, http.MethodGet, "/api/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// =========================================================================
// CATEGORIES
// =========================================================================

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	_, err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error) {
	var out model.Category
	if _, err := c.do(ctx, http.MethodPost, "/api/categories", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReplaceCategory(ctx context.Context, id int64, in model.CategoryInput) (*model.Category, error) {
	var out model.Category
	if _, err := c.do(ctx, http.MethodPut, idPath("/api/categories/", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, idPath("/api/categories/", id), nil, nil)
	return err
}

// =========================================================================
// EVENTS
// =========================================================================

// ListEvents passes category and sort through as query parameters; empty
// values are omitted and the server applies its defaults.
func (c *Client) ListEvents(ctx context.Context, category, sort string) ([]model.Event, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if sort != "" {
		q.Set("sort", sort)
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []model.Event
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CreateEvent(ctx context.Context, in model.EventInput) (*model.Event, error) {
	var out model.Event
	if _, err := c.do(ctx, http.MethodPost, "/api/events", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, patch model.EventPatch) (*model.Event, error) {
	var out model.Event
	if _, err := c.do(ctx, http.MethodPatch, idPath("/api/events/", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, idPath("/api/events/", id), nil, nil)
	return err
}

// Export returns the plain-text journal.
func (c *Client) Export(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if _, err := c.do(ctx, http.MethodGet, "/api/events/export", nil, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Client) CategoryStats(ctx context.Context) ([]timeline.CategoryStat, error) {
	var out []timeline.CategoryStat
	_, err := c.do(ctx, http.MethodGet, "/api/stats/categories", nil, &out)
	return out, err
}

// =========================================================================
// VISITORS
// =========================================================================

func (c *Client) IncrementVisitors(ctx context.Context) (int64, error) {
	var out countResponse
	_, err := c.do(ctx, http.MethodPost, "/api/visitors/increment", nil, &out)
	return out.Count, err
}

func (c *Client) VisitorCount(ctx context.Context) (int64, error) {
	var out countResponse
	_, err := c.do(ctx, http.MethodGet, "/api/visitors/count", nil, &out)
	return out.Count, err
}

// =========================================================================
// TRANSPORT
// =========================================================================

func idPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// do sends one request. body, when non-nil, is encoded as JSON. out may be
// nil (discard), a *bytes.Buffer (raw body) or anything json can decode into.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp, decodeError(resp)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
	case *bytes.Buffer:
		if _, err := dst.ReadFrom(resp.Body); err != nil {
			return resp, fmt.Errorf("client: read %s %s: %w", method, path, err)
		}
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp, fmt.Errorf("client: decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
		if body.Message == "" {
			body.Message = resp.Status
		}
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = apperror.ErrValidation
	case http.StatusUnauthorized:
		sentinel = apperror.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = apperror.ErrForbidden
	case http.StatusNotFound:
		sentinel = apperror.ErrNotFound
	case http.StatusConflict:
		sentinel = apperror.ErrConflict
	default:
		sentinel = fmt.Errorf("server returned %s", resp.Status)
	}
	return &apperror.AppError{Err: sentinel, Message: body.Message}
}
