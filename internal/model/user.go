// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Only ID, Username and Email ever leave the server; the remaining fields are
// tagged json:"-" so that a User can be encoded directly without leaking the
// hash or the pending verification token.
type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	EmailVerified     bool      `json:"-"`
	VerificationToken *string   `json:"-"` // nil once verified
	GitHubID          *int64    `json:"-"` // set when linked through GitHub sign-in
	CreatedAt         time.Time `json:"-"`
}

// RegisterInput is the body of POST /api/register.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the body of POST /api/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is a server-side login. The cookie only carries a signed reference
// to it, so deleting the row logs the browser out.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
