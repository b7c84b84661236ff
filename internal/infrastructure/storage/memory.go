package storage

import (
	"context"
	"sync"

	"github.com/cookeasy/recipe-client/internal/core/ports"
)

// MemoryStore is an in-process CredentialStore for tests and ephemeral
// sessions.
type MemoryStore struct {
	mu    sync.Mutex
	creds *ports.Credentials

	// FailSave, when set, makes the next Save return it.
	FailSave error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, creds ports.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		err := s.FailSave
		s.FailSave = nil
		return err
	}
	stored := creds
	s.creds = &stored
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*ports.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil, nil
	}
	copied := *s.creds
	return &copied, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}

// Stored reports the current pair without the CredentialStore contract;
// test helper.
func (s *MemoryStore) Stored() *ports.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil
	}
	copied := *s.creds
	return &copied
}
