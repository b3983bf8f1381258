package userctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haasonsaas/agentbridge/pkg/models"
)

const tokenKeyPrefix = "auth:token:"

// RedisTokenStore persists auth tokens in Redis so logins survive process
// restarts. Keys carry a TTL matching the token expiry, and a token read
// back in an expired state is deleted rather than returned.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore wraps an existing Redis client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func tokenKey(userID string) string {
	return tokenKeyPrefix + userID
}

func (s *RedisTokenStore) Get(ctx context.Context, userID string) (*models.AuthToken, error) {
	raw, err := s.client.Get(ctx, tokenKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token for %s: %w", userID, err)
	}

	var token models.AuthToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decoding token for %s: %w", userID, err)
	}

	// TTL should make this unreachable, but clock skew between the writer
	// and Redis can leave a stale token behind.
	if token.Expired(time.Now()) {
		_ = s.client.Del(ctx, tokenKey(userID)).Err()
		return nil, nil
	}
	return &token, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, token *models.AuthToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token for %s: %w", token.UserID, err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token for %s is already expired", token.UserID)
	}
	if err := s.client.Set(ctx, tokenKey(token.UserID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("storing token for %s: %w", token.UserID, err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, tokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("deleting token for %s: %w", userID, err)
	}
	return nil
}
