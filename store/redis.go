package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to document paths to build redis keys.
const DefaultRedisPrefix = "otpad:doc:"

// RedisStore keeps document text in redis strings.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis connects to the redis server at addr and checks it answers.
func OpenRedis(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, ""), nil
}

func (s *RedisStore) key(path string) string {
	return s.prefix + path
}

// Load reads the text stored under the key of path. A missing key is ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, path string) (string, error) {
	text, err := s.client.Get(ctx, s.key(path)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return text, nil
}

// Save sets the key of path to text, without expiry.
func (s *RedisStore) Save(ctx context.Context, path, text string) error {
	if err := s.client.Set(ctx, s.key(path), text, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
