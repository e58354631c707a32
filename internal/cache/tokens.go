package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldRefreshToken = "refresh_token"
	fieldExpiresAt    = "expires_at"
)

// TokenStore persists the rotating refresh token in a Redis hash.
type TokenStore struct {
	rdb redis.Cmdable
	key string
}

// NewTokenStore creates a TokenStore.
func NewTokenStore(rdb redis.Cmdable, key string) *TokenStore {
	return &TokenStore{rdb: rdb, key: key}
}

// LoadRefreshToken returns the stored refresh token, or "" when none is
// stored yet.
func (s *TokenStore) LoadRefreshToken(ctx context.Context) (string, error) {
	const op = "cache.TokenStore.LoadRefreshToken"

	rt, err := s.rdb.HGet(ctx, s.key, fieldRefreshToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return rt, nil
}

// SaveTokens stores the latest refresh token and the access token expiry.
func (s *TokenStore) SaveTokens(ctx context.Context, refreshToken string, expiresAt time.Time) error {
	const op = "cache.TokenStore.SaveTokens"

	if err := s.rdb.HSet(ctx, s.key,
		fieldRefreshToken, refreshToken,
		fieldExpiresAt, expiresAt.UTC().Format(time.RFC3339),
	).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
