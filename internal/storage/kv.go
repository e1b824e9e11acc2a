package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// KV is the minimal key-value surface the entity stores need. The production
// implementation is redis; tests substitute an in-memory map.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

type redisKV struct {
	client *redis.Client
}

// NewRedisKV adapts a go-redis client to the KV interface. A missing key is
// reported as absent, not as an error.
func NewRedisKV(client *redis.Client) KV {
	return &redisKV{client: client}
}

func (r *redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *redisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *redisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
