package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore creates a MemoryStore seeded with creds.
func NewMemoryStore(creds Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

func (s *MemoryStore) Load(_ context.Context) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

func (s *MemoryStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.creds = Credentials{}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CompareAndClear(_ context.Context, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds.RefreshToken != refreshToken {
		return false, nil
	}
	s.creds = Credentials{}
	return true, nil
}

var (
	_ Store             = (*MemoryStore)(nil)
	_ CompareAndClearer = (*MemoryStore)(nil)
)
