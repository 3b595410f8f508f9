package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create one, so no other package can read or shadow
// the values stored under it.
type contextKey string

const (
	userIDKey    contextKey = "userID"
	sessionIDKey contextKey = "sessionID"
)

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the "token" cookie, resolves it to a live session and stores the
// user ID and session ID in the request context. A missing cookie, a bad
// signature or a deleted session all end the chain with 401.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := authenticate(r, sessions)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"Not authenticated"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user identity when a valid session cookie is
// present but never blocks the request. Logout uses it so that a stale cookie
// can still be cleared.
func OptionalAuth(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctx, ok := authenticate(r, sessions); ok {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user's ID.
// Returns (0, false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// SessionIDFromContext returns the current session ID, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// WithIdentity returns a context carrying userID and sessionID, exactly as
// RequireAuth would set them. Handler tests use it to skip the cookie dance.
func WithIdentity(ctx context.Context, userID int64, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// authenticate is the shared core of RequireAuth and OptionalAuth.
func authenticate(r *http.Request, sessions *SessionManager) (context.Context, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	sess, err := sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return nil, false
	}
	return WithIdentity(r.Context(), sess.UserID, sess.ID), true
}
