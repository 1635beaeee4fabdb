package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Session errors (AUTH-001 to AUTH-099)
	ErrCodeAuthExpired        ErrorCode = "AUTH-001"
	ErrCodeAuthRequired       ErrorCode = "AUTH-002"
	ErrCodeSessionPending     ErrorCode = "AUTH-003"
	ErrCodeInvalidCredentials ErrorCode = "AUTH-004"

	// Role errors (AUTHZ-001 to AUTHZ-099)
	ErrCodeAuthorization ErrorCode = "AUTHZ-001"

	// Input rejected before the network (VALID-001 to VALID-099)
	ErrCodeValidation ErrorCode = "VALID-001"

	// Server side invariant violations such as capacity (CONFLICT-001 to CONFLICT-099)
	ErrCodeConflict ErrorCode = "CONFLICT-001"

	// Transport failures (NET-001 to NET-099)
	ErrCodeNetwork ErrorCode = "NET-001"

	// API responses (API-001 to API-099)
	ErrCodeNotFound   ErrorCode = "API-001"
	ErrCodeUnexpected ErrorCode = "API-002"

	// Mutation control (MUT-001 to MUT-099)
	ErrCodeMutationPending ErrorCode = "MUT-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
)

// EventifyError is an error with a code, recovery suggestions and an optional cause.
type EventifyError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *EventifyError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *EventifyError) Unwrap() error {
	return e.Cause
}

// New creates a new EventifyError
func New(code ErrorCode, message string) *EventifyError {
	return &EventifyError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new EventifyError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *EventifyError {
	return &EventifyError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *EventifyError) WithSuggestion(suggestion string) *EventifyError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// CodeOf returns the code of the outermost EventifyError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var ee *EventifyError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// HasCode reports whether any EventifyError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var ee *EventifyError
		if !stderrors.As(err, &ee) {
			return false
		}
		if ee.Code == code {
			return true
		}
		err = ee.Cause
	}
	return false
}

// UserMessage returns the message to show in a notification: the
// server-supplied or local message without code or suggestions.
func UserMessage(err error) string {
	var ee *EventifyError
	if stderrors.As(err, &ee) {
		return ee.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsAuthExpired reports whether the backend rejected the credential.
func IsAuthExpired(err error) bool { return HasCode(err, ErrCodeAuthExpired) }

// IsConflict reports whether the backend refused the change because of a
// server side invariant (capacity, duplicate booking).
func IsConflict(err error) bool { return HasCode(err, ErrCodeConflict) }

// IsNetwork reports whether the request never produced a usable response.
func IsNetwork(err error) bool { return HasCode(err, ErrCodeNetwork) }

// IsValidation reports whether input was rejected.
func IsValidation(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsAuthorization reports whether the viewer lacks the required role.
func IsAuthorization(err error) bool { return HasCode(err, ErrCodeAuthorization) }

// Common error constructors for frequently used errors

// NewAuthRequiredError is returned when a command needs a signed-in viewer.
func NewAuthRequiredError() *EventifyError {
	return New(ErrCodeAuthRequired, "you need to be logged in").
		WithSuggestion("Run 'eventify auth login --email <email>'")
}

// NewAuthorizationError is returned when the viewer's role is insufficient.
func NewAuthorizationError(required string) *EventifyError {
	return New(ErrCodeAuthorization, fmt.Sprintf("access denied: only %s users can access this area", required)).
		WithSuggestion("Ask an administrator for access")
}

// NewValidationError reports rejected input for a named field.
func NewValidationError(field, reason string) *EventifyError {
	msg := reason
	if field != "" {
		msg = fmt.Sprintf("%s: %s", field, reason)
	}
	return New(ErrCodeValidation, msg)
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(cause error) *EventifyError {
	return Wrap(ErrCodeNetwork, "could not reach the Eventify API", cause).
		WithSuggestion("Check the api.url setting: eventify config get api.url").
		WithSuggestion("Verify your network connection")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *EventifyError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
