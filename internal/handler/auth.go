// Package handler contains the HTTP request handlers of the REST API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path params, query, JSON body)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, JSON body)
//
// Handlers contain no business logic; they are the glue between HTTP and
// the services. Authentication happens before them, in auth.RequireAuth,
// which puts the user ID in the request context.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/lifeline/internal/auth"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler serves registration, email verification, login, logout and
// the optional GitHub sign-in.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an unverified account, mail the link
//   - HandleVerifyEmail    → consume the mailed token
//   - HandleLogin          → check credentials, set the session cookie
//   - HandleLogout         → end the session, clear the cookie
//   - HandleMe             → return the logged-in user's profile
//   - HandleGitHubLogin    → redirect to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code, sign in, set the cookie
type AuthHandler struct {
	auth         *service.AuthService
	github       *auth.GitHubProvider // nil when GitHub sign-in is disabled
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		github:       github,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/register
// REQUEST BODY: {"username": "alice", "email": "alice@example.com", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in model.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.auth.Register(r.Context(), in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: service.MsgRegistered})
}

// HandleVerifyEmail marks the account owning the token as verified.
//
// HTTP: GET /api/verify-email?token=...
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: service.MsgEmailVerified})
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/login
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: {"id": 1, "username": "alice", "email": "alice@example.com"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in model.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	auth.SetCookie(w, res.Token, res.Session.ExpiresAt, h.secureCookie)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout ends the current session, if any, and clears the cookie.
//
// HTTP: POST /api/logout
//
// Mounted behind OptionalAuth: logging out without a session still clears
// whatever cookie the browser holds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := auth.SessionIDFromContext(r.Context()); ok {
		if err := h.auth.Logout(r.Context(), sessionID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	auth.ClearCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/user
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and must come
// back unchanged on the callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find, link or create the local account
//  4. Start a session and set the cookie
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Steps 3 and 4 ---
	res, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	auth.SetCookie(w, res.Token, res.Session.ExpiresAt, h.secureCookie)

	// --- Step 5: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
