package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// newTestTokenService uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// ISSUE / VALIDATE TESTS
// =========================================================================

func TestIssue_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue(42, "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	// header.payload.signature
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("token has %d dots, want 2: %q", n, token)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	token, _ := ts.Issue(42, "sess-1", exp)
	c, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if c.UserID != 42 {
		t.Errorf("UserID = %d, want 42", c.UserID)
	}
	if c.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", c.SessionID)
	}
	if !c.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", c.ExpiresAt, exp)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	good, _ := ts.Issue(1, "s", time.Now().Add(time.Hour))
	expired, _ := ts.Issue(1, "s", time.Now().Add(-time.Second))
	foreign, _ := other.Issue(1, "s", time.Now().Add(time.Hour))
	noSession, _ := ts.Issue(1, "", time.Now().Add(time.Hour))

	// Swap the payload of a token for another user's payload: the signature
	// no longer matches.
	victim, _ := ts.Issue(2, "s", time.Now().Add(time.Hour))
	g, v := strings.Split(good, "."), strings.Split(victim, ".")
	tampered := g[0] + "." + v[1] + "." + g[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"expired", expired},
		{"wrong secret", foreign},
		{"tampered payload", tampered},
		{"missing session id", noSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
