package preferences

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps preferences as plain string keys under a prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if value == "" {
		return s.client.Del(ctx, s.prefix+key).Err()
	}
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}
