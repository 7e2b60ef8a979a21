package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store keeps waiting user keys in arrival order without duplicates.
type Store interface {
	// Push appends key and reports false when it was already queued.
	Push(ctx context.Context, key string) (bool, error)
	// PushFront puts keys back at the head, keeping their relative order.
	PushFront(ctx context.Context, keys ...string) error
	Remove(ctx context.Context, key string) (bool, error)
	// PopPair removes the two oldest keys when at least two are waiting.
	PopPair(ctx context.Context) (string, string, bool, error)
	Len(ctx context.Context) (int64, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	keys []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Push(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(key) >= 0 {
		return false, nil
	}
	m.keys = append(m.keys, key)
	return true, nil
}

func (m *MemoryStore) PushFront(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	front := make([]string, 0, len(keys)+len(m.keys))
	for _, k := range keys {
		if m.indexOf(k) < 0 {
			front = append(front, k)
		}
	}
	m.keys = append(front, m.keys...)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(key)
	if i < 0 {
		return false, nil
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	return true, nil
}

func (m *MemoryStore) PopPair(_ context.Context) (string, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.keys) < 2 {
		return "", "", false, nil
	}
	a, b := m.keys[0], m.keys[1]
	m.keys = m.keys[2:]
	return a, b, true, nil
}

func (m *MemoryStore) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.keys)), nil
}

func (m *MemoryStore) indexOf(key string) int {
	for i, k := range m.keys {
		if k == key {
			return i
		}
	}
	return -1
}

const (
	DefaultQueueKey = "pong:queue"
	seqSuffix       = ":seq"
)

// RedisStore keeps the queue in a sorted set scored by a monotonic counter, so entries
// that arrive within the same second still keep their order.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Push(ctx context.Context, key string) (bool, error) {
	seq, err := s.rdb.Incr(ctx, s.key+seqSuffix).Result()
	if err != nil {
		return false, fmt.Errorf("queue sequence: %w", err)
	}
	added, err := s.rdb.ZAddNX(ctx, s.key, redis.Z{Score: float64(seq), Member: key}).Result()
	if err != nil {
		return false, fmt.Errorf("queue push: %w", err)
	}
	return added == 1, nil
}

func (s *RedisStore) PushFront(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	head := 0.0
	lowest, err := s.rdb.ZRangeWithScores(ctx, s.key, 0, 0).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("queue head: %w", err)
	}
	if len(lowest) == 1 {
		head = lowest[0].Score
	}
	members := make([]redis.Z, 0, len(keys))
	for i, k := range keys {
		members = append(members, redis.Z{Score: head - float64(len(keys)-i), Member: k})
	}
	if err := s.rdb.ZAddNX(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("queue push front: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.ZRem(ctx, s.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("queue remove: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) PopPair(ctx context.Context) (string, string, bool, error) {
	users, err := s.rdb.ZRange(ctx, s.key, 0, 1).Result()
	if err != nil {
		return "", "", false, fmt.Errorf("queue head: %w", err)
	}
	if len(users) < 2 {
		return "", "", false, nil
	}
	if err := s.rdb.ZRem(ctx, s.key, users[0], users[1]).Err(); err != nil {
		return "", "", false, fmt.Errorf("queue pop: %w", err)
	}
	return users[0], users[1], true, nil
}

func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
