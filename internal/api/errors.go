package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// conflictHints are 400 wordings the API uses for capacity and duplicate
// booking rejections.
var conflictHints = []string{
	"full",
	"capacity",
	"already booked",
	"already registered",
	"duplicate",
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(status int, body []byte) error {
	msg := serverMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "request failed"
	}

	var err *apperrors.EventifyError
	switch {
	case status == http.StatusUnauthorized:
		err = apperrors.New(apperrors.ErrCodeAuthExpired, msg).
			WithSuggestion("Run 'eventify auth login' to sign in again")
	case status == http.StatusForbidden:
		err = apperrors.New(apperrors.ErrCodeAuthorization, msg)
	case status == http.StatusNotFound:
		err = apperrors.New(apperrors.ErrCodeNotFound, msg)
	case status == http.StatusConflict:
		err = apperrors.New(apperrors.ErrCodeConflict, msg)
	case status == http.StatusBadRequest && looksLikeConflict(msg):
		err = apperrors.New(apperrors.ErrCodeConflict, msg)
	case status >= 400 && status < 500:
		err = apperrors.New(apperrors.ErrCodeValidation, msg)
	case status >= 500:
		err = apperrors.New(apperrors.ErrCodeNetwork, msg).
			WithSuggestion("The Eventify API is unavailable, try again later")
	default:
		err = apperrors.New(apperrors.ErrCodeUnexpected, msg)
	}
	return &StatusError{Status: status, EventifyError: err}
}

// StatusError is a taxonomy error that also remembers the HTTP status.
type StatusError struct {
	Status int
	*apperrors.EventifyError
}

// Unwrap exposes the coded error to errors.As.
func (e *StatusError) Unwrap() error {
	return e.EventifyError
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func serverMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if errResp.Message != "" {
			return errResp.Message
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func looksLikeConflict(msg string) bool {
	lower := strings.ToLower(msg)
	for _, hint := range conflictHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func classifyTransport(err error) error {
	return apperrors.NewNetworkError(err)
}

func unexpected(msg string, cause error) error {
	return apperrors.Wrap(apperrors.ErrCodeUnexpected, msg, cause)
}
