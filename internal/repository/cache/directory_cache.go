// internal/repository/cache/directory_cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telecrm-service/internal/domain/user"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedDirectory wraps a Directory with a short-TTL Redis cache for the
// manager→employee sets that batch operations hit repeatedly. Cache errors
// fall through to the wrapped directory, never to the caller.
type CachedDirectory struct {
	inner  user.Directory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedDirectory(inner user.Directory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (d *CachedDirectory) GetUser(ctx context.Context, id int64) (*user.User, error) {
	return d.inner.GetUser(ctx, id)
}

func (d *CachedDirectory) FindEmployeesOfManager(ctx context.Context, managerID int64) ([]user.User, error) {
	key := fmt.Sprintf("directory:employees:%d", managerID)

	if data, err := d.client.Get(ctx, key).Bytes(); err == nil {
		var employees []user.User
		if err := json.Unmarshal(data, &employees); err == nil {
			return employees, nil
		}
		d.logger.Warn("corrupt directory cache entry, refetching", zap.String("key", key))
	} else if err != redis.Nil {
		d.logger.Warn("directory cache read failed", zap.Error(err))
	}

	employees, err := d.inner.FindEmployeesOfManager(ctx, managerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(employees); err == nil {
		if err := d.client.Set(ctx, key, data, d.ttl).Err(); err != nil {
			d.logger.Warn("directory cache write failed", zap.Error(err))
		}
	}

	return employees, nil
}

// Invalidate drops a manager's cached employee set, for when the org
// hierarchy changes.
func (d *CachedDirectory) Invalidate(ctx context.Context, managerID int64) error {
	return d.client.Del(ctx, fmt.Sprintf("directory:employees:%d", managerID)).Err()
}
