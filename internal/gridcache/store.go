package gridcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Store.Get when no payload is cached under a key.
var ErrMiss = errors.New("grid payload not cached")

// DefaultTTL bounds how long an unused payload stays in Redis.
const DefaultTTL = 10 * time.Minute

// Store holds encoded grid payloads by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps only the most recent payload.
type MemoryStore struct {
	mu      sync.RWMutex
	key     string
	payload []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.payload == nil || m.key != key {
		return nil, ErrMiss
	}
	return m.payload, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.payload = payload
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == key {
		m.payload = nil
	}
	return nil
}

// RedisStore keeps payloads in Redis with a TTL. Keys from different API
// instances never collide.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl <= 0 uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "pixelclaim:grid:", ttl: ttl}
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get grid payload: %w", err)
	}
	return data, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, r.key(key), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set grid payload: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete grid payload: %w", err)
	}
	return nil
}
