package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"planner-agent/internal/auth"
	"planner-agent/internal/auth/credentials"
)

// AuthResponse is the POST /auth/login body.
type AuthResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

// RegisterResponse is the POST /auth/register body. Registration does not
// log the user in, so no token is expected.
type RegisterResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

var errMissingToken = errors.New("api: login response carried no token")

func (c *Client) Login(ctx context.Context, creds credentials.Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, c.anon, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errMissingToken
	}
	if out.User.Role == "" {
		return nil, errors.New("api: login response carried no user role")
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, reg credentials.Registration) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, c.anon, http.MethodPost, "/auth/register", reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the current user with the stored bearer token. The backend
// answers either {user} / {success, user} or the bare user object.
func (c *Client) Profile(ctx context.Context) (*auth.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, c.bearer, http.MethodGet, "/auth/profile", nil, &raw); err != nil {
		return nil, err
	}
	var u auth.User
	if err := unwrap(raw, "user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}
