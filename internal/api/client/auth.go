package client

import (
	"context"

	"github.com/donaldgifford/meli-harvester/internal/meli"
)

// AuthStatus is the harvester's view of its marketplace credentials.
type AuthStatus struct {
	AccountID string          `json:"account_id"`
	Token     meli.TokenInfo  `json:"token"`
	Identity  meli.AuthStatus `json:"identity"`
}

// RefreshResult is returned after a forced token refresh.
type RefreshResult struct {
	Status       string         `json:"status"`
	TokenPreview string         `json:"token_preview"`
	Token        meli.TokenInfo `json:"token"`
}

// AuthStatus returns the token state and identity check result.
func (c *Client) AuthStatus(ctx context.Context) (*AuthStatus, error) {
	var out AuthStatus
	if err := c.get(ctx, "/api/v1/auth/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken forces a token refresh on the server.
func (c *Client) RefreshToken(ctx context.Context) (*RefreshResult, error) {
	var out RefreshResult
	if err := c.post(ctx, "/api/v1/auth/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
