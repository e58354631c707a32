package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/donaldgifford/meli-harvester/internal/config"
	"github.com/donaldgifford/meli-harvester/internal/meli"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want domain.FailureReason
	}{
		{name: "nil", err: nil, want: domain.ReasonNone},
		{
			name: "missing config",
			err:  fmt.Errorf("loading config: %w", &config.MissingError{Keys: []string{"meli.client_id"}}),
			want: domain.ReasonConfig,
		},
		{
			name: "expired refresh token",
			err: fmt.Errorf("collecting item ids: %w",
				&meli.AuthError{Op: "refreshing token", Expired: true, Err: errors.New("invalid_grant")}),
			want: domain.ReasonAuthExpired,
		},
		{
			name: "auth rejected after refresh",
			err: fmt.Errorf("collecting item ids: %w", &meli.AuthError{
				Op:  "request rejected after token refresh",
				Err: &meli.APIError{StatusCode: 401, Path: "/users/1/items/search"},
			}),
			want: domain.ReasonAuth,
		},
		{
			name: "token refresh failed",
			err: fmt.Errorf("resolving item MLA2: %w", &meli.AuthError{
				Op:  "executing token request",
				Err: errors.New("connection refused"),
			}),
			want: domain.ReasonAuth,
		},
		{
			name: "canceled while waiting for a token",
			err: fmt.Errorf("resolving item MLA2: %w",
				&meli.AuthError{Op: "refreshing token", Err: context.Canceled}),
			want: domain.ReasonCanceled,
		},
		{
			name: "sink failure",
			err:  fmt.Errorf("%w: %w", ErrSink, errors.New("disk full")),
			want: domain.ReasonSink,
		},
		{
			name: "canceled",
			err:  fmt.Errorf("resolving item 2 of 3: %w", context.Canceled),
			want: domain.ReasonCanceled,
		},
		{
			name: "server error",
			err:  fmt.Errorf("collecting item ids: %w", &meli.APIError{StatusCode: 503}),
			want: domain.ReasonNetwork,
		},
		{
			name: "timeout",
			err:  fmt.Errorf("collecting item ids: %w", context.DeadlineExceeded),
			want: domain.ReasonNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
