package api

import (
	"context"
	"errors"
	"fmt"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.post(ctx, "/auth/login", creds, &out); err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", creds.Username, err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return &out, nil
}
