package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/pkg/logger"
)

// TokenSource is the part of the token manager the auth endpoints use.
type TokenSource interface {
	Info() meli.TokenInfo
	Refresh(ctx context.Context) (string, error)
}

// IdentityChecker runs the "who am I" call.
type IdentityChecker interface {
	CheckStatus(ctx context.Context) meli.AuthStatus
}

// AuthHandler exposes token state and a manual refresh.
type AuthHandler struct {
	tokens    TokenSource
	identity  IdentityChecker
	accountID string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokens TokenSource, identity IdentityChecker, accountID string) *AuthHandler {
	return &AuthHandler{tokens: tokens, identity: identity, accountID: accountID}
}

// AuthStatusOutput is the response for the auth status endpoint.
type AuthStatusOutput struct {
	Body struct {
		AccountID string          `json:"account_id" example:"987654" doc:"Seller account the credentials belong to"`
		Token     meli.TokenInfo  `json:"token"`
		Identity  meli.AuthStatus `json:"identity"`
	}
}

// AuthRefreshOutput is the response for the auth refresh endpoint.
type AuthRefreshOutput struct {
	Body struct {
		Status       string         `json:"status"        example:"refreshed"`
		TokenPreview string         `json:"token_preview" example:"APP_USR-12..."`
		Token        meli.TokenInfo `json:"token"`
	}
}

// Status reports the cached token state and runs an identity check.
func (h *AuthHandler) Status(ctx context.Context, _ *struct{}) (*AuthStatusOutput, error) {
	resp := &AuthStatusOutput{}
	resp.Body.AccountID = h.accountID
	resp.Body.Identity = h.identity.CheckStatus(ctx)
	resp.Body.Token = h.tokens.Info()
	return resp, nil
}

// Refresh forces a token exchange. An expired refresh token maps to 401;
// any other failure is treated as an upstream error.
func (h *AuthHandler) Refresh(ctx context.Context, _ *struct{}) (*AuthRefreshOutput, error) {
	token, err := h.tokens.Refresh(ctx)
	if err != nil {
		if errors.Is(err, meli.ErrAuthExpired) {
			return nil, huma.Error401Unauthorized("refresh token expired: re-authorize the application", err)
		}
		return nil, huma.Error502BadGateway("token refresh failed", err)
	}

	resp := &AuthRefreshOutput{}
	resp.Body.Status = "refreshed"
	resp.Body.TokenPreview = logger.Preview(token)
	resp.Body.Token = h.tokens.Info()
	return resp, nil
}

// RegisterAuthRoutes registers the auth endpoints with the Huma API.
func RegisterAuthRoutes(api huma.API, h *AuthHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-auth-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/status",
		Summary:     "Get authentication status",
		Description: "Returns the cached access token state and the result of a /users/me identity check.",
		Tags:        []string{"auth"},
	}, h.Status)

	huma.Register(api, huma.Operation{
		OperationID: "refresh-auth",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh access token",
		Description: "Exchanges the refresh token for a new access token.",
		Tags:        []string{"auth"},
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, h.Refresh)
}
