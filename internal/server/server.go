// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
//   - Which storage backends serve the repositories
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - Which background jobs run and how the server stops
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → backends (memory | SQLite, optional Redis)
//	             → services (Auth, Category, Event, Visitor)
//	             → handlers → chi routes
//
// This is the "composition root": all dependencies are wired here, in
// New and setupRoutes, rather than scattered across the codebase.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/sakif/lifeline/internal/auth"
	"github.com/sakif/lifeline/internal/config"
	"github.com/sakif/lifeline/internal/handler"
	"github.com/sakif/lifeline/internal/mailer"
	"github.com/sakif/lifeline/internal/metrics"
	"github.com/sakif/lifeline/internal/middleware"
	"github.com/sakif/lifeline/internal/scheduler"
	"github.com/sakif/lifeline/internal/service"
	"github.com/sakif/lifeline/internal/telemetry"
)

const (
	serviceName     = "lifeline"
	shutdownTimeout = 30 * time.Second
)

// Option customises New. Tests use these to swap in fakes.
type Option func(*Server)

// WithMailer replaces the mailer chosen from the SMTP settings.
func WithMailer(m mailer.Sender) Option {
	return func(s *Server) { s.mail = m }
}

// WithPasswordCost overrides the bcrypt cost. Only tests should lower it.
func WithPasswordCost(cost int) Option {
	return func(s *Server) { s.passwords = auth.NewPasswordServiceForTest(cost) }
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns its storage backends and the purge scheduler. Start closes
// them on the way out, after in-flight requests have finished.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	backends  *backends
	metrics   *metrics.Metrics
	sessions  *auth.SessionManager
	passwords *auth.PasswordService
	mail      mailer.Sender
	cron      *scheduler.Scheduler
}

// New opens the configured backends and wires every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	b, err := openBackends(ctx, cfg.DBPath, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		backends:  b,
		metrics:   metrics.New(),
		passwords: auth.NewPasswordService(),
		cron:      scheduler.New(logger),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setup(); err != nil {
		_ = b.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	// === SESSIONS ===
	secret := s.config.SessionSecret
	if secret == "" {
		var err error
		if secret, err = randomSecret(); err != nil {
			return err
		}
		s.logger.Warn("SESSION_SECRET not set; using a random secret, sessions end on restart")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	s.sessions = auth.NewSessionManager(tokens, s.backends.sessions, s.config.SessionTTL)

	// === MAIL ===
	if s.mail == nil {
		if s.config.SMTPEnabled() {
			smtpSender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
				Host:     s.config.SMTPHost,
				Port:     s.config.SMTPPort,
				Username: s.config.SMTPUser,
				Password: s.config.SMTPPass,
				From:     s.config.SMTPFrom,
			})
			if err != nil {
				return err
			}
			s.mail = smtpSender
		} else {
			s.logger.Warn("SMTP_HOST not set; verification links are logged instead of mailed")
			s.mail = mailer.NewLogSender(s.logger)
		}
	}

	// === BACKGROUND JOBS ===
	if _, err := s.cron.Every("purge-sessions", s.config.SessionPurgeInterval, s.purgeSessions); err != nil {
		return fmt.Errorf("scheduling session purge: %w", err)
	}

	s.setupRoutes()
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                  → liveness + backend checks
//	GET    /metrics                  → Prometheus
//	POST   /api/register             → create account        (rate limited)
//	GET    /api/verify-email         → consume mailed token
//	POST   /api/login                → start session         (rate limited)
//	POST   /api/logout               → end session
//	GET    /api/user                 → current user          (auth)
//	POST   /api/visitors/increment   → count a visit
//	GET    /api/visitors/count       → read the counter
//	*      /api/categories[/{id}]    → category CRUD         (auth)
//	*      /api/events[/{id}]        → event CRUD            (auth)
//	GET    /api/events/export        → plain-text journal    (auth)
//	GET    /api/stats/categories     → per-category stats    (auth)
//	GET    /auth/github/{login,callback} → optional GitHub sign-in
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP: so every later layer sees them
// 2. Recoverer: turns panics into 500s
// 3. Logger, Metrics: observe the final status
// 4. CORS: answers preflight requests before routing
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(s.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	// === SERVICES ===
	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	authService := service.NewAuthService(s.backends.store, s.passwords, s.sessions, s.mail, s.config.AppURL, s.metrics, s.logger)
	categoryService := service.NewCategoryService(s.backends.store, s.logger)
	eventService := service.NewEventService(s.backends.store, s.backends.store, s.logger)
	visitorService := service.NewVisitorService(s.backends.visitors, s.metrics)

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(authService, github, s.config.CookieSecure, s.logger)
	categoryHandler := handler.NewCategoryHandler(categoryService, s.logger)
	eventHandler := handler.NewEventHandler(eventService, s.logger)
	visitorHandler := handler.NewVisitorHandler(visitorService, s.logger)
	healthHandler := handler.NewHealthHandler(s.backends.checks, s.logger)

	r.Get("/healthz", healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Brute-force protection on the credential endpoints only.
	limited := httprate.LimitByIP(s.config.LoginRateLimit, time.Minute)

	r.Route("/api", func(r chi.Router) {
		// A body must be JSON, which a cross-site form cannot send without
		// a CORS preflight.
		r.Use(chimiddleware.AllowContentType("application/json"))

		// Public
		r.With(limited).Post("/register", authHandler.HandleRegister)
		r.With(limited).Post("/login", authHandler.HandleLogin)
		r.Get("/verify-email", authHandler.HandleVerifyEmail)
		r.With(auth.OptionalAuth(s.sessions)).Post("/logout", authHandler.HandleLogout)
		r.Post("/visitors/increment", visitorHandler.HandleIncrement)
		r.Get("/visitors/count", visitorHandler.HandleCount)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.sessions))

			r.Get("/user", authHandler.HandleMe)

			r.Get("/categories", categoryHandler.HandleList)
			r.Post("/categories", categoryHandler.HandleCreate)
			r.Put("/categories/{id}", categoryHandler.HandleReplace)
			r.Delete("/categories/{id}", categoryHandler.HandleDelete)

			r.Get("/events", eventHandler.HandleList)
			r.Post("/events", eventHandler.HandleCreate)
			r.Get("/events/export", eventHandler.HandleExport)
			r.Patch("/events/{id}", eventHandler.HandleUpdate)
			r.Delete("/events/{id}", eventHandler.HandleDelete)

			r.Get("/stats/categories", eventHandler.HandleStats)
		})
	})

	if github != nil {
		r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}
}

// Handler returns the root handler, wrapped for tracing.
func (s *Server) Handler() http.Handler {
	return telemetry.Middleware(serviceName)(s.router)
}

// Start starts the HTTP server and blocks until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the listener fails.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the scheduler and close the storage backends
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.backends.close(); err != nil {
			s.logger.Error("closing backends", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.cron.Start()
	defer s.cron.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("url", s.config.AppURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// Close releases the backends without starting. For callers that built a
// Server and then decided not to run it, such as tests.
func (s *Server) Close() error {
	return s.backends.close()
}

func (s *Server) purgeSessions(ctx context.Context) error {
	n, err := s.sessions.Purge(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", slog.Int("count", n))
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
