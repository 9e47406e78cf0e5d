package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the snapshot key.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// RedisStore keeps the snapshot as a single string value at
// cerebro:<namespace>:snapshot. Redis serialises SET and GET, so no extra
// lock is taken.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required (set snapshot.redis_addr)")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "default"
	}
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		namespace: ns,
	}, nil
}

// SnapshotKey returns the Redis key holding the snapshot for namespace.
func SnapshotKey(namespace string) string {
	return fmt.Sprintf("cerebro:%s:snapshot", namespace)
}

func (s *RedisStore) Name() string { return "redis:" + SnapshotKey(s.namespace) }

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, SnapshotKey(s.namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.rdb.Set(ctx, SnapshotKey(s.namespace), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
