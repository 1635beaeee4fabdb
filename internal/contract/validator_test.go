package contract

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestNew_LoadsEmbeddedDocument(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	ops := v.Operations()
	assert.Contains(t, ops, "POST /api/attendees/book")
	assert.Contains(t, ops, "DELETE /api/attendees/cancel/{eventId}")
	assert.Contains(t, ops, "GET /api/events/public")
}

func TestValidateRequest(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	ctx := context.Background()
	uid := domain.ID("7")
	when := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		wantErr string
	}{
		{
			name:   "guest booking",
			method: "POST", path: "/api/attendees/book",
			body: domain.BookingRequest{EventID: "1", Name: "Ann", Email: "ann@example.com"},
		},
		{
			name:   "member booking",
			method: "POST", path: "/api/attendees/book",
			body: domain.BookingRequest{EventID: "1", Name: "Ann", Email: "ann@example.com", UserID: &uid},
		},
		{
			name:   "booking without name",
			method: "POST", path: "/api/attendees/book",
			body:    domain.BookingRequest{EventID: "1", Email: "ann@example.com"},
			wantErr: "name",
		},
		{
			name:   "booking with bad email",
			method: "POST", path: "/api/attendees/book",
			body:    domain.BookingRequest{EventID: "1", Name: "Ann", Email: "ann"},
			wantErr: "email",
		},
		{
			name:   "valid event",
			method: "POST", path: "/api/events",
			body: domain.EventInput{Title: "Meetup", Date: when, Capacity: 20},
		},
		{
			name:   "event capacity zero",
			method: "PUT", path: "/api/events/3",
			body:    domain.EventInput{Title: "Meetup", Date: when, Capacity: 0},
			wantErr: "capacity",
		},
		{
			name:   "login",
			method: "POST", path: "/api/auth/login",
			body: domain.Credentials{Email: "a@example.com", Password: "x"},
		},
		{
			name:   "signup short password",
			method: "POST", path: "/api/auth/signup",
			body:    domain.SignupRequest{Name: "A", Email: "a@example.com", Password: "123"},
			wantErr: "password",
		},
		{
			name:   "undocumented route passes",
			method: "POST", path: "/api/unknown",
			body: map[string]string{"x": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(ctx, tt.method, tt.path, mustJSON(t, tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, apperrors.UserMessage(err), tt.wantErr)
		})
	}
}

func TestValidateRequest_BodylessRoute(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	assert.NoError(t, v.ValidateRequest(context.Background(), "DELETE", "/api/events/5", nil))
}

func TestLoad_InvalidDocument(t *testing.T) {
	_, err := Load([]byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"))
	assert.Error(t, err)

	_, err = Load([]byte("{not yaml"))
	assert.Error(t, err)
}
