package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/auth"
	"github.com/sakif/lifeline/internal/mailer"
	"github.com/sakif/lifeline/internal/metrics"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

// User-facing messages. Clients match on some of these, keep them stable.
const (
	MsgRegistered         = "Registration successful. Please check your email to verify your account."
	MsgEmailVerified      = "Email verified successfully. You can now login."
	MsgEmailTaken         = "Email already registered"
	MsgUsernameTaken      = "Username already taken"
	MsgInvalidCredentials = "Invalid email or password"
	MsgEmailNotVerified   = "Please verify your email first"
	MsgInvalidToken       = "Invalid verification token"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// AuthService handles registration, verification, login and logout:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository
//	                   ↘ PasswordService (bcrypt)
//	                   ↘ SessionManager (session store + JWT)
//	                   ↘ mailer.Sender (verification mail)
//
// It does NOT set cookies or read requests. The handler does that with the
// token returned in AuthResult.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write user records
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - sessions   *auth.SessionManager      → server-side sessions + signed cookie value
//   - mail       mailer.Sender             → verification mail
//   - appURL     string                    → base of the verification link
//   - metrics    *metrics.Metrics          → auth attempt counters (may be nil)
//   - logger     *slog.Logger              → structured logging
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	sessions  *auth.SessionManager
	mail      mailer.Sender
	appURL    string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	sessions *auth.SessionManager,
	mail mailer.Sender,
	appURL string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		sessions:  sessions,
		mail:      mail,
		appURL:    strings.TrimSuffix(appURL, "/"),
		metrics:   m,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued cookie value so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Token   string
	Session *model.Session
}

// Register creates an unverified account and mails the verification link.
//
// Email uniqueness is checked before username uniqueness; both are reported
// as validation errors (400). If the mail cannot be sent the account still
// exists and the returned error is internal.
func (s *AuthService) Register(ctx context.Context, in model.RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if err := validateRegistration(username, email, in.Password); err != nil {
		s.metrics.AuthAttempt("register", "invalid")
		return nil, err
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		s.metrics.AuthAttempt("register", "duplicate")
		return nil, apperror.ValidationFailed("email", MsgEmailTaken)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up email: %w", err)
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		s.metrics.AuthAttempt("register", "duplicate")
		return nil, apperror.ValidationFailed("username", MsgUsernameTaken)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up username: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		EmailVerified:     false,
		VerificationToken: &token,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) {
			s.metrics.AuthAttempt("register", "duplicate")
			if appErr.Field == "username" {
				return nil, apperror.ValidationFailed("username", MsgUsernameTaken)
			}
			return nil, apperror.ValidationFailed("email", MsgEmailTaken)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	if err := s.mail.SendVerificationEmail(ctx, email, s.VerifyURL(token)); err != nil {
		s.metrics.AuthAttempt("register", "mail_failed")
		return nil, fmt.Errorf("service/auth: sending verification email to user %d: %w", user.ID, err)
	}

	s.metrics.AuthAttempt("register", "ok")
	return user, nil
}

// VerifyURL is the link mailed to a new user.
func (s *AuthService) VerifyURL(token string) string {
	return s.appURL + "/api/verify-email?token=" + url.QueryEscape(token)
}

// VerifyEmail marks the account holding token as verified and clears the
// token, so a link works only once.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.AuthAttempt("verify", "invalid")
		return nil, apperror.ValidationFailed("token", MsgInvalidToken)
	}

	user, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.AuthAttempt("verify", "invalid")
			return nil, apperror.ValidationFailed("token", MsgInvalidToken)
		}
		return nil, fmt.Errorf("service/auth: looking up verification token: %w", err)
	}

	user.EmailVerified = true
	user.VerificationToken = nil
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: verifying user %d: %w", user.ID, err)
	}

	s.metrics.AuthAttempt("verify", "ok")
	s.logger.Info("email verified", slog.Int64("userID", user.ID))
	return user, nil
}

// Login checks credentials and starts a session.
//
// Unknown email and wrong password produce the same message so the response
// does not reveal which addresses are registered.
func (s *AuthService) Login(ctx context.Context, in model.LoginInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.AuthAttempt("login", "invalid")
			return nil, apperror.Unauthorized(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// Accounts created through GitHub have no password.
	if user.PasswordHash == "" {
		s.metrics.AuthAttempt("login", "invalid")
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.metrics.AuthAttempt("login", "invalid")
			return nil, apperror.Unauthorized(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	if !user.EmailVerified {
		s.metrics.AuthAttempt("login", "unverified")
		return nil, apperror.Unauthorized(MsgEmailNotVerified)
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.AuthAttempt("login", "ok")
	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return result, nil
}

// Logout ends the session. Ending an unknown session is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.End(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	return nil
}

// CurrentUser returns the user a resolved session belongs to.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Not authenticated")
		}
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", userID, err)
	}
	return user, nil
}

// LoginWithGitHub signs in the owner of a GitHub profile.
//
// The account is found by GitHub id, then by verified email (linking the
// GitHub id to it). Otherwise a new, already verified account is created,
// named after the GitHub login. A clash with an existing username gets a
// numeric suffix.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.linkOrCreateGitHubUser(ctx, gh)
		if err != nil {
			s.metrics.AuthAttempt("github", "failed")
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up github user %d: %w", gh.ID, err)
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.AuthAttempt("github", "ok")
	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return result, nil
}

func (s *AuthService) linkOrCreateGitHubUser(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	email := normalizeEmail(gh.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "GitHub account has no verified email address")
	}

	githubID := gh.ID
	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		// Nobody proved they own this address before now, so the password
		// chosen at registration is not trusted.
		if !user.EmailVerified {
			user.PasswordHash = ""
		}
		user.GitHubID = &githubID
		user.EmailVerified = true
		user.VerificationToken = nil
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: linking github id to user %d: %w", user.ID, err)
		}
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up email: %w", err)
	}

	base := githubUsername(gh.Login)
	for attempt := 0; attempt < 10; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", base, attempt+1)
		}
		user = &model.User{
			Username:      username,
			Email:         email,
			EmailVerified: true,
			GitHubID:      &githubID,
		}
		err = s.users.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrConflict) || appErr.Field != "username" {
			return nil, fmt.Errorf("service/auth: creating github user: %w", err)
		}
	}
	return nil, apperror.ValidationFailed("username", MsgUsernameTaken)
}

func (s *AuthService) startSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	token, sess, err := s.sessions.Start(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: starting session for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, Session: sess}, nil
}

// === VALIDATION ===

func validateRegistration(username, email, password string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username",
			"username may contain only letters, digits, dot, dash and underscore")
	}
	if !emailPattern.MatchString(email) {
		return apperror.ValidationFailed("email", "email address is invalid")
	}
	if len(password) < auth.MinPasswordLen {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLen))
	}
	if len(password) > auth.MaxPasswordLen {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordLen))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// githubUsername maps a GitHub login onto the local username rules.
func githubUsername(login string) string {
	name := strings.Map(func(r rune) rune {
		if r < 128 && usernamePattern.MatchString(string(r)) {
			return r
		}
		return -1
	}, login)
	if len(name) > MaxUsernameLength-2 {
		name = name[:MaxUsernameLength-2]
	}
	for len(name) < MinUsernameLength {
		name += "_"
	}
	return name
}

// newVerificationToken returns 32 random bytes as 64 hex chars.
func newVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("service/auth: generating verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
