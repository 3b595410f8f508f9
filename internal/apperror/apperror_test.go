package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("event", int64(7)),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("score", "score must be between 0 and 100"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "email"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("Invalid email or password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("updating event: %w", NotFound("event", int64(1))),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("category", int64(3)),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Unauthorized does NOT match ErrForbidden",
			err:       Unauthorized("nope"),
			target:    ErrForbidden,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("event", int64(42)),
			wantMessage: "event not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("title", "title is required"),
			wantMessage: "title is required",
		},
		{
			name:        "Conflict message includes resource and key",
			err:         Conflict("user", "username"),
			wantMessage: "user conflict on username",
		},
		{
			name:        "Unauthorized uses custom message",
			err:         Unauthorized("Please verify your email first"),
			wantMessage: "Please verify your email first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("category", int64(9))
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestFieldIsRecorded(t *testing.T) {
	if err := ValidationFailed("email", "invalid email format"); err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if err := Conflict("user", "email"); err.Field != "email" {
		t.Errorf("Conflict Field = %q, want %q", err.Field, "email")
	}
}
