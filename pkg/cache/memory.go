package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps encoded entries in memory, the content is lost on Close.
type MemoryStore struct {
	lock    sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Read(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.lock.RLock()
	data, found := s.entries[key]
	s.lock.RUnlock()

	if !found {
		return nil, notFound(key)
	}
	return decode(key, data)
}

func (s *MemoryStore) Write(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(key, value)
	if err != nil {
		return err
	}

	s.lock.Lock()
	s.entries[key] = data
	s.lock.Unlock()
	return nil
}

// Len returns number of stored entries.
func (s *MemoryStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = make(map[string][]byte)
	return nil
}
