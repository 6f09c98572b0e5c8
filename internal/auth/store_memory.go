package auth

import (
	"context"
	"sync"

	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
)

// NewInMemoryCredentialStore returns a CredentialStore backed by a map.
func NewInMemoryCredentialStore(users ...models.User) *InMemoryCredentialStore {
	store := &InMemoryCredentialStore{users: make(map[string]models.User, len(users))}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

// InMemoryCredentialStore implements CredentialStore for tests and local tooling.
type InMemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put inserts or replaces a user record.
func (s *InMemoryCredentialStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// Remove deletes a user record.
func (s *InMemoryCredentialStore) Remove(id string) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

func (s *InMemoryCredentialStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *InMemoryCredentialStore) SetRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = token
	s.users[id] = user
	return nil
}

// RefreshToken reports the stored token for id. Useful for tests.
func (s *InMemoryCredentialStore) RefreshToken(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id].RefreshToken
}

var _ CredentialStore = (*InMemoryCredentialStore)(nil)
