package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storefront/storefront/internal/platform/cache"
)

// ResetTokens issues single-use password reset tokens.
type ResetTokens interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	Consume(ctx context.Context, token string) (uuid.UUID, error)
}

// RedisResetTokens keeps reset tokens in redis until they expire or are used.
type RedisResetTokens struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResetTokens constructs the token store.
func NewRedisResetTokens(client *redis.Client, ttl time.Duration) *RedisResetTokens {
	return &RedisResetTokens{client: client, ttl: ttl}
}

func resetKey(token string) string {
	return cache.Key("password_reset", token)
}

// Issue stores a fresh token for userID.
func (t *RedisResetTokens) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := t.client.Set(ctx, resetKey(token), userID.String(), t.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume returns the user bound to token and deletes it.
func (t *RedisResetTokens) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := t.client.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrResetTokenInvalid
	}
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrResetTokenInvalid
	}
	return id, nil
}

var _ ResetTokens = (*RedisResetTokens)(nil)
