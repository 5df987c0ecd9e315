package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// PermissionRepository loads the permissions granted to a role.
type PermissionRepository interface {
	RolePermissions(ctx context.Context, role string) ([]string, error)
}

// PermissionCache caches role permissions in Redis with a short TTL so
// permission checks do not hit Postgres on every request. Invalidate must be
// called when a role's grants change.
type PermissionCache struct {
	repo   PermissionRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPermissionCache constructs a PermissionCache.
func NewPermissionCache(repo PermissionRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *PermissionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionCache{repo: repo, client: client, ttl: ttl, logger: logger}
}

func cacheKey(role string) string {
	return "perms:" + role
}

// Permissions returns the permission set for a role, from cache when warm.
// A cache outage degrades to a direct repository read.
func (c *PermissionCache) Permissions(ctx context.Context, role string) ([]string, error) {
	if role == "" {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(role)).Result()
	if err == nil {
		var perms []string
		if err := json.Unmarshal([]byte(raw), &perms); err == nil {
			return perms, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("permission cache read failed", "role", role, "error", err)
	}

	perms, err := c.repo.RolePermissions(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("auth: load permissions: %w", err)
	}
	if encoded, err := json.Marshal(perms); err == nil {
		if err := c.client.Set(ctx, cacheKey(role), encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("permission cache write failed", "role", role, "error", err)
		}
	}
	return perms, nil
}

// Invalidate drops the cached set for a role.
func (c *PermissionCache) Invalidate(ctx context.Context, role string) error {
	return c.client.Del(ctx, cacheKey(role)).Err()
}

// Has reports whether the role holds the permission.
func (c *PermissionCache) Has(ctx context.Context, role, permission string) (bool, error) {
	perms, err := c.Permissions(ctx, role)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
