package history

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "op-outcome:history"

// RedisStore keeps snapshots in a Redis list, oldest first.
type RedisStore struct {
	client *backend.Client
	key    string
}

type RedisOption func(*RedisStore)

// WithKey sets the list key snapshots are stored under.
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		s.key = key
	}
}

// NewRedisStore connects to the Redis server at address.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, opts...)
}

// NewRedisStoreFromClient creates a store from an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		key:    DefaultRedisKey,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Append(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) ([]Snapshot, error) {
	vals, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil && err != backend.Nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	snaps := make([]Snapshot, 0, len(vals))
	for i, val := range vals {
		var snap Snapshot
		if err := json.Unmarshal([]byte(val), &snap); err != nil {
			return nil, fmt.Errorf("invalid snapshot at index %d of %s: %w", i, s.key, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
