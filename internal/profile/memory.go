package profile

import (
	"context"
	"sync"
)

// MemoryStore is an in-process RecordStore. Each instance is isolated, so
// tests and single-node deployments can inject their own.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, false, nil
	}
	return deepCopyProfile(&p), true, nil
}

func (s *MemoryStore) PutProfile(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = deepCopyProfile(&p)
	return nil
}

func (s *MemoryStore) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
	return nil
}
