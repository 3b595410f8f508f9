package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

// CookieName is the name of the session cookie.
const CookieName = "token"

// DefaultSessionTTL is used when NewSessionManager gets a zero TTL.
const DefaultSessionTTL = 24 * time.Hour

// ErrNoSession means the token was valid but its session is gone (logged out,
// expired or purged) or belongs to another user.
var ErrNoSession = errors.New("auth: session not found")

// SessionManager ties signed tokens to stored sessions.
type SessionManager struct {
	tokens *TokenService
	store  repository.SessionStore
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. ttl <= 0 means DefaultSessionTTL.
func NewSessionManager(tokens *TokenService, store repository.SessionStore, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{tokens: tokens, store: store, ttl: ttl, now: time.Now}
}

// TTL is how long new sessions live.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Start creates a session for userID and returns the signed cookie value.
// Session IDs are xids: 20 URL-safe chars, unique without coordination.
func (m *SessionManager) Start(ctx context.Context, userID int64) (string, *model.Session, error) {
	sess := &model.Session{
		ID:        xid.New().String(),
		UserID:    userID,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("auth: storing session: %w", err)
	}

	token, err := m.tokens.Issue(userID, sess.ID, sess.ExpiresAt)
	if err != nil {
		_ = m.store.DeleteSession(ctx, sess.ID)
		return "", nil, err
	}
	return token, sess, nil
}

// Resolve validates token and returns its live session.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*model.Session, error) {
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	sess, err := m.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}
	if sess.UserID != claims.UserID {
		return nil, ErrNoSession
	}
	return sess, nil
}

// End deletes the session. Unknown IDs are not an error.
func (m *SessionManager) End(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("auth: deleting session: %w", err)
	}
	return nil
}

// Purge drops expired sessions. Called periodically by the scheduler.
func (m *SessionManager) Purge(ctx context.Context) (int, error) {
	return m.store.PurgeExpired(ctx)
}

// =========================================================================
// COOKIE
// =========================================================================

// SetCookie writes the session cookie.
//
// HttpOnly keeps the token away from JavaScript. A secure cookie is sent as
// SameSite=None so a frontend on another allowed origin can use it with
// credentialed requests; otherwise SameSite=Lax.
func SetCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
	})
}

// ClearCookie tells the browser to drop the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
	})
}

// Browsers drop SameSite=None cookies that are not also Secure.
func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
