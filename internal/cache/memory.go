package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memoryList struct {
	values    []string
	expiresAt time.Time
}

// MemoryStore is an in-process Store used in tests and single-node
// deployments without Redis. Behavior matches the Redis store.
type MemoryStore struct {
	mu    sync.Mutex
	kv    map[string]memoryEntry
	lists map[string]memoryList
	now   func() time.Time
}

// NewMemoryStore returns an empty in-memory Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string]memoryEntry),
		lists: make(map[string]memoryList),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.kv[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.kv, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.kv[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *MemoryStore) PushList(_ context.Context, key string, value string, maxLen int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if !list.expiresAt.IsZero() && s.now().After(list.expiresAt) {
		list = memoryList{}
	}
	list.values = append([]string{value}, list.values...)
	if maxLen > 0 && len(list.values) > maxLen {
		list.values = list.values[:maxLen]
	}
	if ttl > 0 {
		list.expiresAt = s.now().Add(ttl)
	}
	s.lists[key] = list
	return nil
}

func (s *MemoryStore) RangeList(_ context.Context, key string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[key]
	if !ok {
		return nil, nil
	}
	if !list.expiresAt.IsZero() && s.now().After(list.expiresAt) {
		delete(s.lists, key)
		return nil, nil
	}
	if limit <= 0 || limit > len(list.values) {
		limit = len(list.values)
	}
	out := make([]string, limit)
	copy(out, list.values[:limit])
	return out, nil
}
