package repositories

import (
	"maps"
	"sync"
)

// MemoryStore implements [Store] in process memory. Nothing survives Close.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[namespace][key]
	return v, ok, nil
}

func (s *MemoryStore) Put(namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[namespace] == nil {
		s.entries[namespace] = make(map[string]string)
	}
	s.entries[namespace][key] = value
	return nil
}

func (s *MemoryStore) Delete(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[namespace], key)
	return nil
}

func (s *MemoryStore) List(namespace string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries[namespace]))
	maps.Copy(out, s.entries[namespace])
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]map[string]string)
	return nil
}
