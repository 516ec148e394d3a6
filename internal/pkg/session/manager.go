// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager tracks issued tokens in Redis so logout can revoke a jti before
// the JWT itself expires.
type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

func (m *Manager) sessionKey(userID int64, jti string) string {
	return fmt.Sprintf("session:%d:%s", userID, jti)
}

// Track records an active session with the token's remaining lifetime.
func (m *Manager) Track(ctx context.Context, userID int64, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	if err := m.client.Set(ctx, m.sessionKey(userID, jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	return nil
}

// IsActive reports whether the given token is still tracked.
func (m *Manager) IsActive(ctx context.Context, userID int64, jti string) (bool, error) {
	_, err := m.client.Get(ctx, m.sessionKey(userID, jti)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	return true, nil
}

// Revoke drops a session so its token stops validating immediately.
func (m *Manager) Revoke(ctx context.Context, userID int64, jti string) error {
	return m.client.Del(ctx, m.sessionKey(userID, jti)).Err()
}

// RevokeAll drops every tracked session of a user.
func (m *Manager) RevokeAll(ctx context.Context, userID int64) error {
	pattern := fmt.Sprintf("session:%d:*", userID)

	iter := m.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}
