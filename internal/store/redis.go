// Package store holds the redis-backed fixed-window counter behind the
// gateway's shared rate limiter.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client and namespaces every key it touches, so
// several kiosk gateways can share one instance without colliding.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects with short timeouts. Keys live under prefix, defaulting
// to "rollcall".
func NewRedis(addr, prefix string) *Redis {
	if prefix == "" {
		prefix = "rollcall"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

// IncrWindow bumps a fixed-window counter, arming the ttl on the window's
// first increment, and returns the new count.
func (r *Redis) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	full := r.key(key)
	count, err := r.Client.Incr(ctx, full).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.Client.Expire(ctx, full, ttl)
	}
	return count, nil
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
