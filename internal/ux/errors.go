package ux

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that do not carry one yet.
// Coded errors already list their own suggestions and pass through.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var coded *apperrors.EventifyError
	if errors.As(err, &coded) && len(coded.Suggestions) > 0 {
		return err
	}

	errMsg := err.Error()

	switch {
	case apperrors.IsAuthExpired(err):
		return NewErrorWithSuggestion(err,
			"Your session ended. Log in again with 'eventify auth login'")
	case apperrors.HasCode(err, apperrors.ErrCodeNotFound):
		return NewErrorWithSuggestion(err,
			"List events with 'eventify events list' to find a valid id")
	case apperrors.IsConflict(err):
		return NewErrorWithSuggestion(err,
			"Refresh with 'eventify events list' to see current availability")
	}

	// Session backend
	if strings.Contains(errMsg, "redis") {
		return NewErrorWithSuggestion(err,
			"Check session.redis_url or switch backends: eventify config set session.backend file")
	}

	if strings.Contains(errMsg, "message authentication failed") {
		return NewErrorWithSuggestion(err,
			"The session file was sealed with another passphrase. Check session.passphrase or log in again")
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewErrorWithSuggestion(err,
			"Check api.url (eventify config get api.url) or start a local API with 'eventify mock-server --seed'")
	}

	if strings.Contains(errMsg, "deadline exceeded") {
		return NewErrorWithSuggestion(err,
			"The API did not answer in time. Raise the timeout: eventify config set api.timeout 60s")
	}

	// Permission errors
	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check permissions of ~/.eventify or set EVENTIFY_HOME to a writable directory")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
