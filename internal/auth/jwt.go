// Package auth handles passwords, login sessions and the session cookie.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /api/login checks the bcrypt hash and creates a server-side session
//  2. The server signs a JWT naming the user ("sub") and the session ("jti")
//     and stores it in the HttpOnly "token" cookie
//  3. On later requests RequireAuth validates the JWT signature, then looks the
//     session up in the SessionStore, and puts the user ID in the context
//  4. POST /api/logout deletes the session, so the cookie is dead even though
//     its signature is still valid
//
// The JWT alone would be stateless. Pairing it with a stored session is what
// makes logout and server-side expiry possible.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"iss":"lifeline","sub":"42","jti":"<session id>","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "lifeline"

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Claims is what a valid token tells us.
type Claims struct {
	UserID    int64
	SessionID string
	ExpiresAt time.Time
}

// Issue signs a token for userID bound to sessionID that expires at expiresAt.
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric, so the same secret
// verifies; fine for a single service.
func (s *TokenService) Issue(userID int64, sessionID string, expiresAt time.Time) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches "lifeline"
//   - Algorithm is HS256 (prevents the "alg: none" confusion attack)
//
// Every failure wraps ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&rc,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(rc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, rc.Subject)
	}
	if rc.ID == "" {
		return nil, fmt.Errorf("%w: no session id", ErrInvalidToken)
	}

	return &Claims{
		UserID:    userID,
		SessionID: rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
