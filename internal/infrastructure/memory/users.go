package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-api-assets/internal/domain"
)

// UserStore is a thread-safe in-process user store with unique emails.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.UserID]; ok {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
	}
	cp := *u
	s.byID[u.UserID] = &cp
	s.byEmail[u.Email] = u.UserID
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	cp := *s.byID[id]
	return &cp, nil
}

// Delete removes the user and frees its email. Missing users are ignored.
func (s *UserStore) Delete(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.byID[u.UserID]; ok {
		delete(s.byEmail, stored.Email)
		delete(s.byID, u.UserID)
	}
	return nil
}
