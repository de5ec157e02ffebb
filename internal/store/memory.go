package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral hosts. Values
// round-trip through JSON so type behavior matches the file and sqlite
// backends.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) Get(key string, into any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.blobs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(blob, into); err != nil {
		// Fail open like the other backends: corrupt means absent.
		delete(s.blobs, key)
		return false, nil
	}
	return true, nil
}

func (s *MemStore) Set(key string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemStore) Close() error { return nil }

// Corrupt overwrites a key with undecodable bytes. Test helper.
func (s *MemStore) Corrupt(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = []byte("{not json")
}
