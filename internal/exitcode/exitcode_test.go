package exitcode

import (
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"ConflictError", ConflictError, 7},
		{"ValidationError", ValidationError, 8},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "auth expired",
			err:      apperrors.New(apperrors.ErrCodeAuthExpired, "token expired"),
			expected: AuthError,
		},
		{
			name:     "auth required",
			err:      apperrors.NewAuthRequiredError(),
			expected: AuthError,
		},
		{
			name:     "authorization",
			err:      apperrors.NewAuthorizationError("admin"),
			expected: AuthError,
		},
		{
			name:     "network wrapped by fmt",
			err:      fmt.Errorf("list events: %w", apperrors.NewNetworkError(errors.New("dial tcp"))),
			expected: NetworkError,
		},
		{
			name:     "conflict",
			err:      apperrors.New(apperrors.ErrCodeConflict, "Event is full"),
			expected: ConflictError,
		},
		{
			name:     "validation",
			err:      apperrors.NewValidationError("email", "required"),
			expected: ValidationError,
		},
		{
			name:     "not found is general",
			err:      apperrors.New(apperrors.ErrCodeNotFound, "Event not found"),
			expected: GeneralError,
		},
		{
			name:     "plain error mentioning token is general",
			err:      errors.New("token file unreadable"),
			expected: GeneralError,
		},
		{
			name:     "unknown command",
			err:      errors.New(`unknown command "foo" for "eventify"`),
			expected: UsageError,
		},
		{
			name:     "required flag",
			err:      errors.New(`required flag(s) "email" not set`),
			expected: UsageError,
		},
		{
			name:     "arg count",
			err:      errors.New("accepts 1 arg(s), received 0"),
			expected: UsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	for _, code := range []int{Success, GeneralError, UsageError, AuthError, NetworkError, ConflictError, ValidationError, Interrupted} {
		if GetExitCodeDescription(code) == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if GetExitCodeDescription(99) != "Unknown error" {
		t.Error("unexpected description for unknown code")
	}
}
