package ux

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

func TestNewErrorWithSuggestion(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		suggestion string
		wantNil    bool
	}{
		{
			name:       "nil error returns nil",
			err:        nil,
			suggestion: "some suggestion",
			wantNil:    true,
		},
		{
			name:       "error with suggestion",
			err:        errors.New("something failed"),
			suggestion: "try this fix",
			wantNil:    false,
		},
		{
			name:       "error without suggestion",
			err:        errors.New("something failed"),
			suggestion: "",
			wantNil:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewErrorWithSuggestion(tt.err, tt.suggestion)
			if tt.wantNil {
				if result != nil {
					t.Errorf("NewErrorWithSuggestion() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("NewErrorWithSuggestion() returned nil, want error")
			}

			errMsg := result.Error()
			if !strings.Contains(errMsg, tt.err.Error()) {
				t.Errorf("Error message %q does not contain original error %q", errMsg, tt.err.Error())
			}

			if tt.suggestion != "" && !strings.Contains(errMsg, tt.suggestion) {
				t.Errorf("Error message %q does not contain suggestion %q", errMsg, tt.suggestion)
			}
		})
	}
}

func TestErrorWithSuggestion_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		suggestion string
		wantMsg    string
	}{
		{
			name:       "with suggestion",
			err:        errors.New("test error"),
			suggestion: "do this",
			wantMsg:    "test error\n\n💡 Suggestion: do this",
		},
		{
			name:       "without suggestion",
			err:        errors.New("test error"),
			suggestion: "",
			wantMsg:    "test error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ErrorWithSuggestion{
				Err:        tt.err,
				Suggestion: tt.suggestion,
			}

			if e.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", e.Error(), tt.wantMsg)
			}
		})
	}
}

func TestErrorWithSuggestion_Unwrap(t *testing.T) {
	origErr := errors.New("original error")
	e := &ErrorWithSuggestion{
		Err:        origErr,
		Suggestion: "some suggestion",
	}

	unwrapped := e.Unwrap()
	if unwrapped != origErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, origErr)
	}
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantNil        bool
		wantSuggestion string
	}{
		{
			name:    "nil error returns nil",
			err:     nil,
			wantNil: true,
		},
		{
			name:           "connection refused",
			err:            errors.New("dial tcp 127.0.0.1:5000: connect: connection refused"),
			wantSuggestion: "eventify mock-server --seed",
		},
		{
			name:           "timeout",
			err:            errors.New("context deadline exceeded"),
			wantSuggestion: "api.timeout",
		},
		{
			name:           "redis backend",
			err:            errors.New("redis: connection pool timeout"),
			wantSuggestion: "session.backend file",
		},
		{
			name:           "sealed session with wrong passphrase",
			err:            errors.New("open session: chacha20poly1305: message authentication failed"),
			wantSuggestion: "session.passphrase",
		},
		{
			name:           "permission denied",
			err:            errors.New("open /home/u/.eventify/session.json: permission denied"),
			wantSuggestion: "EVENTIFY_HOME",
		},
		{
			name:           "expired session",
			err:            apperrors.New(apperrors.ErrCodeAuthExpired, "Invalid or expired token"),
			wantSuggestion: "eventify auth login",
		},
		{
			name:           "conflict",
			err:            apperrors.New(apperrors.ErrCodeConflict, "Event is full"),
			wantSuggestion: "eventify events list",
		},
		{
			name:           "coded error keeps its own suggestions",
			err:            apperrors.NewAuthRequiredError(),
			wantSuggestion: "eventify auth login --email",
		},
		{
			name:           "unrecognized error",
			err:            errors.New("something unexpected"),
			wantSuggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EnhanceError(tt.err)

			if tt.wantNil {
				if result != nil {
					t.Errorf("EnhanceError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("EnhanceError() returned nil, want error")
			}

			errMsg := result.Error()

			// Original error should be preserved
			if !strings.Contains(errMsg, tt.err.Error()) {
				t.Errorf("Enhanced error %q does not contain original error %q", errMsg, tt.err.Error())
			}

			// Check for expected suggestion
			if tt.wantSuggestion != "" {
				if !strings.Contains(errMsg, tt.wantSuggestion) {
					t.Errorf("Enhanced error %q does not contain expected suggestion %q", errMsg, tt.wantSuggestion)
				}
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		context     string
		wantNil     bool
		wantContext bool
	}{
		{
			name:    "nil error returns nil",
			err:     nil,
			context: "some context",
			wantNil: true,
		},
		{
			name:        "error with context",
			err:         errors.New("something failed"),
			context:     "while processing file",
			wantContext: true,
		},
		{
			name:        "error without context",
			err:         errors.New("something failed"),
			context:     "",
			wantContext: false,
		},
		{
			name:        "enhances and adds context",
			err:         errors.New("dial tcp: connection refused"),
			context:     "listing events",
			wantContext: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatError(tt.err, tt.context)

			if tt.wantNil {
				if result != nil {
					t.Errorf("FormatError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("FormatError() returned nil, want error")
			}

			errMsg := result.Error()

			if tt.wantContext && tt.context != "" {
				if !strings.Contains(errMsg, tt.context) {
					t.Errorf("Formatted error %q does not contain context %q", errMsg, tt.context)
				}
			}

			// Should still contain original error message
			if !strings.Contains(errMsg, tt.err.Error()) {
				t.Errorf("Formatted error %q does not contain original error %q", errMsg, tt.err.Error())
			}
		})
	}
}

func TestEnhanceError_PreservesErrorChain(t *testing.T) {
	// Create a wrapped error chain
	baseErr := errors.New("base error")
	wrappedErr := NewErrorWithSuggestion(baseErr, "first suggestion")

	// Enhance it again
	enhanced := EnhanceError(wrappedErr)

	// Should be able to unwrap to get original
	if enhanced == nil {
		t.Fatal("EnhanceError() returned nil")
	}

	// EnhanceError returns the original error if it doesn't match any patterns
	// So for an unrecognized ErrorWithSuggestion, it should return it unchanged
	if enhanced.Error() != wrappedErr.Error() {
		t.Errorf("EnhanceError() changed error message: got %q, want %q", enhanced.Error(), wrappedErr.Error())
	}
}
