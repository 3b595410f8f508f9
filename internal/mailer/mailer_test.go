package mailer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestSMTPSender(t *testing.T, user string, sendErr error) (*SMTPSender, *capturedMail) {
	t.Helper()
	s, err := NewSMTPSender(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: user,
		Password: "pw",
		From:     "Lifeline <no-reply@example.com>",
	})
	if err != nil {
		t.Fatalf("NewSMTPSender() error = %v", err)
	}
	got := &capturedMail{}
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*got = capturedMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return sendErr
	}
	return s, got
}

func TestSMTPSender_Send(t *testing.T) {
	s, got := newTestSMTPSender(t, "user", nil)
	url := "http://localhost:8080/api/verify-email?token=abc"

	if err := s.SendVerificationEmail(context.Background(), "alice@example.com", url); err != nil {
		t.Fatalf("SendVerificationEmail() error = %v", err)
	}

	if got.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q", got.addr)
	}
	if got.from != "no-reply@example.com" {
		t.Errorf("envelope from = %q", got.from)
	}
	if len(got.to) != 1 || got.to[0] != "alice@example.com" {
		t.Errorf("to = %v", got.to)
	}
	if got.auth == nil {
		t.Error("auth is nil with username configured")
	}
	for _, want := range []string{
		"Subject: Verify your email address",
		"multipart/alternative",
		"text/plain",
		"text/html",
		url,
	} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPSender_NoAuthWithoutUser(t *testing.T) {
	s, got := newTestSMTPSender(t, "", nil)
	if err := s.SendVerificationEmail(context.Background(), "bob@example.com", "u"); err != nil {
		t.Fatal(err)
	}
	if got.auth != nil {
		t.Error("auth should be nil when no username is configured")
	}
}

func TestSMTPSender_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	s, _ := newTestSMTPSender(t, "user", boom)

	if err := s.SendVerificationEmail(context.Background(), "bob@example.com", "u"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
	if err := s.SendVerificationEmail(context.Background(), "not an address", "u"); err == nil {
		t.Error("expected error for malformed recipient")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendVerificationEmail(ctx, "bob@example.com", "u"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewSMTPSender_BadFrom(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{From: "<<bad"}); err == nil {
		t.Error("NewSMTPSender() should reject a malformed From")
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := s.SendVerificationEmail(context.Background(), "a@example.com", "http://x/verify?token=t"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "token=t") {
		t.Errorf("log output missing url: %q", buf.String())
	}
}
