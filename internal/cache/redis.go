package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/shopbridge/syncengine/internal/config"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by a Redis instance
func NewRedisStore(cfg config.RedisConfig) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisStore) PushList(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, int64(maxLen-1))
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) RangeList(ctx context.Context, key string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1
	}
	vals, err := s.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return vals, err
}
