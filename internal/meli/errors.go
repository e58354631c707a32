package meli

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthExpired is returned when the provider rejects the refresh token
// itself. Recovery requires re-authorizing the application out of band.
var ErrAuthExpired = errors.New("refresh token expired or revoked, re-authorization required")

// APIError is a non-2xx response from the marketplace API.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meli API error (status %d) %s: %s", e.StatusCode, e.Path, e.Body)
}

// AuthError wraps any failure to obtain or use a bearer token.
type AuthError struct {
	Op      string
	Expired bool
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is reports ErrAuthExpired for expired refresh tokens so callers can use
// errors.Is without unwrapping manually.
func (e *AuthError) Is(target error) bool {
	return e.Expired && target == ErrAuthExpired
}

// StatusCode returns the HTTP status carried by err, or 0 if err did not
// come from an HTTP response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsForbidden reports whether err is a 403 from the API.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsCredentialFailure reports whether err means no usable bearer token can
// be obtained: the refresh token was rejected, or a token refresh failed.
// A request rejected with 401/403 after a successful refresh is not a
// credential failure; it concerns that one resource.
func IsCredentialFailure(err error) bool {
	if errors.Is(err, ErrAuthExpired) {
		return true
	}
	var authErr *AuthError
	return errors.As(err, &authErr) && StatusCode(err) == 0
}
