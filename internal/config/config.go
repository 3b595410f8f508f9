// Package config loads server settings from the environment.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port int `env:"PORT,default=8080"`

	// DBPath selects the SQLite backend; empty keeps everything in memory.
	DBPath string `env:"DB_PATH"`

	// RedisAddr moves sessions and the visitor counter to Redis.
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB,default=0"`

	SessionSecret        string        `env:"SESSION_SECRET"`
	SessionTTL           time.Duration `env:"SESSION_TTL,default=24h"`
	SessionPurgeInterval time.Duration `env:"SESSION_PURGE_INTERVAL,default=1h"`
	CookieSecure         bool          `env:"COOKIE_SECURE,default=false"`

	// AppURL is the public base URL used in verification links.
	AppURL string `env:"APP_URL,default=http://localhost:8080"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT,default=587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM,default=Lifeline <no-reply@localhost>"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	LoginRateLimit int      `env:"LOGIN_RATE_LIMIT,default=10"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads from an arbitrary lookuper. Tests pass envconfig.MapLookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.SessionPurgeInterval < time.Second {
		return fmt.Errorf("SESSION_PURGE_INTERVAL must be at least 1s")
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.GitHubClientID != "" && (c.GitHubClientSecret == "" || c.GitHubCallbackURL == "") {
		return fmt.Errorf("GITHUB_CLIENT_SECRET and GITHUB_CALLBACK_URL are required with GITHUB_CLIENT_ID")
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != ""
}

// SMTPEnabled reports whether verification mail is actually sent.
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// NewLogger builds the process logger described by LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}
