package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLease claims a sweep with SET NX and lets the key expire on its own.
type RedisLease struct {
	client redis.UniversalClient
	prefix string
	owner  string
}

func NewRedisLease(client redis.UniversalClient, prefix, owner string) *RedisLease {
	return &RedisLease{
		client: client,
		prefix: prefix,
		owner:  owner,
	}
}

func (l *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("l.client.SetNX -> %w", err)
	}
	return ok, nil
}
