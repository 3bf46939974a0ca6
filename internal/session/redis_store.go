// Package session provides Redis-backed storage for refresh sessions
// and login-failure throttling.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a refresh token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found or expired")

// sessionData is what we persist per refresh token
type sessionData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore stores refresh sessions keyed by hashed token
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "foundit:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "foundit:"}
}

// HashToken returns the storage key material for a raw refresh token.
// Raw tokens never touch Redis.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *RedisStore) refreshKey(tokenHash string) string {
	return s.prefix + "refresh:" + tokenHash
}

func (s *RedisStore) failureKey(email string) string {
	return s.prefix + "login-failures:" + email
}

// SaveRefreshSession stores a refresh session with expiration
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	data, err := json.Marshal(sessionData{UserID: userID, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}
	if err := s.client.Set(ctx, s.refreshKey(tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession resolves a refresh token hash to a user ID
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	raw, err := s.client.Get(ctx, s.refreshKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup refresh session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", fmt.Errorf("unmarshal session data: %w", err)
	}
	return data.UserID, nil
}

// RevokeRefreshSession deletes a refresh session
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.refreshKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// RecordLoginFailure bumps the failed-attempt counter for an email and
// returns the new count. The counter expires after the window.
func (s *RedisStore) RecordLoginFailure(ctx context.Context, email string, window time.Duration) (int, error) {
	key := s.failureKey(email)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("set login failure ttl: %w", err)
		}
	}
	return int(count), nil
}

// LoginFailures reads the failed-attempt counter for an email without
// touching it. Zero when no failure has been recorded in the window.
func (s *RedisStore) LoginFailures(ctx context.Context, email string) (int, error) {
	count, err := s.client.Get(ctx, s.failureKey(email)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read login failures: %w", err)
	}
	return count, nil
}

// ClearLoginFailures resets the failed-attempt counter for an email
func (s *RedisStore) ClearLoginFailures(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.failureKey(email)).Err(); err != nil {
		return fmt.Errorf("clear login failures: %w", err)
	}
	return nil
}
