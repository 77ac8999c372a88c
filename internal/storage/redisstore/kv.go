// Package redisstore is a key-value backend on Redis, for installations
// that keep client state off the local disk.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Connect creates a client and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type KV struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *KV {
	return &KV{client: client, prefix: prefix}
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetMany writes all values atomically in a MULTI/EXEC block.
func (s *KV) SetMany(ctx context.Context, values map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	return err
}

func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	return s.client.Del(ctx, prefixed...).Err()
}
