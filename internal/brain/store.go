package brain

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/dayuer/cacophony-go/internal/redis"
)

// MemoryStore keeps the chain in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	table map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{table: make(map[string][]string)}
}

func (s *MemoryStore) Add(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[key] = append(s.table[key], value)
	return nil
}

func (s *MemoryStore) Random(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bag := s.table[key]
	if len(bag) == 0 {
		return "", false, nil
	}
	return bag[rand.IntN(len(bag))], true, nil
}

// RedisStore keeps the chain in Redis lists under brain:<name>:*.
type RedisStore struct {
	client *redis.Client
	name   string
}

func NewRedisStore(client *redis.Client, name string) *RedisStore {
	return &RedisStore{client: client, name: name}
}

func (s *RedisStore) Add(ctx context.Context, key, value string) error {
	return s.client.ListPush(ctx, redis.BrainKey(s.name, key), value)
}

func (s *RedisStore) Random(ctx context.Context, key string) (string, bool, error) {
	return s.client.ListRandom(ctx, redis.BrainKey(s.name, key))
}
