package credstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and ephemeral use.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

// Get returns the credential for userID, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, userID string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate stored state.
	out := cred

	return &out, nil
}

// Put creates or overwrites the credential.
func (m *MemoryStore) Put(_ context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[cred.UserID] = *cred

	return nil
}

// Delete removes the credential for userID.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.creds, userID)

	return nil
}
