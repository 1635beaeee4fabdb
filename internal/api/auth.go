package api

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// meResponse accepts both {"user": {...}} and a bare profile.
type meResponse struct {
	User *domain.Profile `json:"user"`
}

// Login exchanges credentials for a token and profile.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var res domain.AuthResult
	err := c.do(ctx, request{
		method: "POST",
		route:  "/api/auth/login",
		path:   "/api/auth/login",
		body:   creds,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnexpected, "login response did not include a token")
	}
	return &res, nil
}

// Signup creates an account and returns its token and profile.
func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	var res domain.AuthResult
	err := c.do(ctx, request{
		method: "POST",
		route:  "/api/auth/signup",
		path:   "/api/auth/signup",
		body:   req,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnexpected, "signup response did not include a token")
	}
	return &res, nil
}

// Me returns the profile bound to token. The token is sent explicitly so a
// resolution can verify a credential that is not yet the session's.
func (c *Client) Me(ctx context.Context, token string) (*domain.Profile, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: "GET",
		route:  "/api/auth/me",
		path:   "/api/auth/me",
		token:  &token,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeProfile(raw)
}

func decodeProfile(raw json.RawMessage) (*domain.Profile, error) {
	var wrapped meResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	var bare domain.Profile
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, unexpected("failed to decode profile", err)
	}
	if bare.ID == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnexpected, "profile response did not include a user")
	}
	return &bare, nil
}
