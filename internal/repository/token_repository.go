package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenNotFound = errors.New("token not found or expired")
)

// TokenKind scopes one-time tokens by purpose.
type TokenKind string

const (
	TokenVerification  TokenKind = "verify"
	TokenPasswordReset TokenKind = "reset"
)

// TokenRepository stores expiring single-purpose tokens keyed to a user.
type TokenRepository interface {
	// Issue returns the user's live token of this kind, minting one if none exists.
	Issue(ctx context.Context, kind TokenKind, userID string, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, kind TokenKind, token string) (string, error)
	// Consume resolves the token and revokes it.
	Consume(ctx context.Context, kind TokenKind, token string) (string, error)
}

type redisTokenRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenRepository creates a redis-backed TokenRepository
func NewRedisTokenRepository(client *redis.Client) TokenRepository {
	return &redisTokenRepository{client: client, prefix: "token:"}
}

func (r *redisTokenRepository) tokenKey(kind TokenKind, token string) string {
	return r.prefix + string(kind) + ":" + token
}

func (r *redisTokenRepository) userKey(kind TokenKind, userID string) string {
	return r.prefix + string(kind) + ":user:" + userID
}

func (r *redisTokenRepository) Issue(ctx context.Context, kind TokenKind, userID string, ttl time.Duration) (string, error) {
	if userID == "" || ttl <= 0 {
		return "", fmt.Errorf("token: missing user or ttl")
	}

	existing, err := r.client.Get(ctx, r.userKey(kind, userID)).Result()
	if err == nil {
		if owner, err := r.client.Get(ctx, r.tokenKey(kind, existing)).Result(); err == nil && owner == userID {
			return existing, nil
		}
	} else if err != redis.Nil {
		return "", fmt.Errorf("token: failed to read: %w", err)
	}

	token := uuid.NewString()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(kind, token), userID, ttl)
		pipe.Set(ctx, r.userKey(kind, userID), token, ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("token: failed to store: %w", err)
	}

	return token, nil
}

func (r *redisTokenRepository) Resolve(ctx context.Context, kind TokenKind, token string) (string, error) {
	userID, err := r.client.Get(ctx, r.tokenKey(kind, token)).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("token: failed to read: %w", err)
	}
	return userID, nil
}

func (r *redisTokenRepository) Consume(ctx context.Context, kind TokenKind, token string) (string, error) {
	userID, err := r.client.GetDel(ctx, r.tokenKey(kind, token)).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("token: failed to consume: %w", err)
	}

	if err := r.client.Del(ctx, r.userKey(kind, userID)).Err(); err != nil {
		return "", fmt.Errorf("token: failed to revoke: %w", err)
	}
	return userID, nil
}
