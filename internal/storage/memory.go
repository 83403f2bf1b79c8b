package storage

import (
	"context"
	"sync"

	"github.com/sushihentaime/blogclient/internal/common"
)

// MemoryStore keeps entries in process memory only.
type MemoryStore struct {
	mu    sync.Mutex
	cache *common.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: common.NewCache(0, 0)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.GetBytes(key)
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(ctx context.Context, entries ...Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.cache.Set(e.Key, append([]byte(nil), e.Value...))
	}

	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(keys...)

	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
