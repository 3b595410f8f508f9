// Package mailer delivers account verification mail.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/rs/xid"
)

// Sender sends the verification link to a freshly registered address.
type Sender interface {
	SendVerificationEmail(ctx context.Context, to, verifyURL string) error
}

const subject = "Verify your email address"

// =========================================================================
// SMTP
// =========================================================================

// SMTPConfig is the subset of server config the SMTP sender needs.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay with PLAIN auth. net/smtp
// upgrades to STARTTLS on its own when the server offers it.
type SMTPSender struct {
	cfg  SMTPConfig
	from *mail.Address
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender validates the From address up front so that a typo fails at
// startup and not on the first registration.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("mailer: parsing from address %q: %w", cfg.From, err)
	}
	return &SMTPSender{cfg: cfg, from: from, send: smtp.SendMail}, nil
}

func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to, verifyURL string) error {
	// net/smtp has no context support; at least honour an already
	// cancelled request.
	if err := ctx.Err(); err != nil {
		return err
	}

	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("mailer: parsing recipient: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := buildMessage(s.from, rcpt, verifyURL, time.Now())
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.from.Address, []string{rcpt.Address}, msg); err != nil {
		return fmt.Errorf("mailer: sending to %s: %w", rcpt.Address, err)
	}
	return nil
}

// buildMessage renders a multipart/alternative message with a plain text
// and an HTML part.
func buildMessage(from, to *mail.Address, verifyURL string, now time.Time) []byte {
	boundary := "lifeline-" + xid.New().String()

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Please verify your email address by clicking this link: %s\r\n\r\n", verifyURL)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString("<p>Please verify your email address by clicking the link below:</p>\r\n")
	fmt.Fprintf(&b, "<p><a href=\"%s\">Verify Email</a></p>\r\n\r\n", verifyURL)

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

// =========================================================================
// LOG
// =========================================================================

// LogSender writes the link to the log instead of sending mail. It is used
// when no SMTP host is configured, which keeps local development usable.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationEmail(ctx context.Context, to, verifyURL string) error {
	s.logger.InfoContext(ctx, "verification email (not sent, SMTP disabled)",
		"to", to,
		"url", verifyURL,
	)
	return nil
}
