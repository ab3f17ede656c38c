package shared

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenManager issues and resolves opaque bearer tokens backed by Redis.
// Tokens carry the principal snapshot taken at login; deactivating a user
// therefore requires revoking their tokens.
type TokenManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, ttl time.Duration) *TokenManager {
	return &TokenManager{client: client, ttl: ttl}
}

// Issue creates a token for the principal and stores it with the configured TTL.
func (tm *TokenManager) Issue(ctx context.Context, p Principal) (string, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := tm.client.Set(ctx, tm.key(token), payload, tm.ttl).Err(); err != nil {
		return "", err
	}
	if err := tm.client.SAdd(ctx, tm.userKey(p.UserID), token).Err(); err != nil {
		return "", err
	}
	_ = tm.client.Expire(ctx, tm.userKey(p.UserID), tm.ttl).Err()
	return token, nil
}

// Resolve loads the principal for a token, extending its TTL on access.
func (tm *TokenManager) Resolve(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrTokenExpired
	}
	payload, err := tm.client.Get(ctx, tm.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	_ = tm.client.Expire(ctx, tm.key(token), tm.ttl).Err()
	return &p, nil
}

// Revoke deletes a single token.
func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return tm.client.Del(ctx, tm.key(token)).Err()
}

// RevokeUser deletes every token issued to the user, used when an admin
// deactivates the account or resets its password.
func (tm *TokenManager) RevokeUser(ctx context.Context, userID int64) error {
	tokens, err := tm.client.SMembers(ctx, tm.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, token := range tokens {
		if err := tm.client.Del(ctx, tm.key(token)).Err(); err != nil {
			return err
		}
	}
	return tm.client.Del(ctx, tm.userKey(userID)).Err()
}

// TTL exposes the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) key(token string) string {
	return "token:" + token
}

func (tm *TokenManager) userKey(userID int64) string {
	return "user_tokens:" + strconv.FormatInt(userID, 10)
}
