package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks live sessions so tokens can be revoked before their
// JWT expiry.
type SessionStore interface {
	Put(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// ErrSessionNotFound marks a missing or expired session.
var ErrSessionNotFound = redis.Nil

const sessionKeyPrefix = "session:"

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore builds a SessionStore on top of go-redis.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Put(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl).Err()
}

func (s *redisSessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	return s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
}

func (s *redisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
