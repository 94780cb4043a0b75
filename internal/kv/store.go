// Package kv provides the string key-value store that backs all persisted state.
package kv

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Store is a synchronous get/set/delete store of whole string values.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set overwrites the value for key.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns all keys starting with prefix, sorted.
	Keys(prefix string) ([]string, error)
}

// HealthChecker is implemented by stores backed by a network service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
