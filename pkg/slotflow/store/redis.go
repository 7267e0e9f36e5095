package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// distant expiry used as the index score when records never expire
const noExpiryScore = 4102444800 // 2100-01-01

// RedisStore persists conversations to Redis, for multi-instance
// deployments. Records live under a key prefix with an optional TTL;
// a ZSET index keyed by expiry supports List without SCAN.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption is a functional option for RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long idle conversations are kept. Zero means
// forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix overrides the default key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithClock replaces the wall clock used for index expiry scores, so
// tests against a virtual-clock Redis stay consistent.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

// NewRedisStore connects to Redis at the given address.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "slotflow:conv:",
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisStore) key(conversationKey string) string {
	return s.prefix + conversationKey
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) (*state.Record, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rec state.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", key, err)
	}
	return &rec, nil
}

// Save implements Store. The record and its index entry are written in
// one pipeline.
func (s *RedisStore) Save(ctx context.Context, rec *state.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", rec.Key, err)
	}

	score := float64(noExpiryScore)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(rec.Key), raw, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: rec.Key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// List implements Store. Index entries whose TTL already passed are
// pruned on the way.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", s.now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("redis prune index: %w", err)
	}
	keys, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{
		Min: now,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	return keys, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
