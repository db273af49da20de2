package credentials

import (
	"fmt"
	"sync"

	"xsched/internal/xs"
)

// MemoryStore is an in-process CredentialStore.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

var _ xs.CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding a copy of initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	secrets := make(map[string]string, len(initial))
	for k, v := range initial {
		secrets[k] = v
	}
	return &MemoryStore{secrets: secrets}
}

func (s *MemoryStore) Credential(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.secrets[name]
	if v == "" {
		return "", fmt.Errorf("%w: no %s credential", xs.ErrNotAuthenticated, name)
	}
	return v, nil
}

func (s *MemoryStore) SetCredentials(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.secrets[k] = v
	}
	return nil
}

func (s *MemoryStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets[name] != ""
}
