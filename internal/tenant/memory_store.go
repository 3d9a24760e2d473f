package tenant

import (
	"context"
	"sync"
)

// MemoryStore keeps tenant records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Config
	loads   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*Config)}
}

func (s *MemoryStore) Load(_ context.Context, tenantID string) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	cfg, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	return cfg.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[cfg.TenantID] = cfg.Clone()
	return nil
}

// Loads returns how many Load calls the store has served.
func (s *MemoryStore) Loads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

func (s *MemoryStore) Close() error { return nil }
