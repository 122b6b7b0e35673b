package memory

import (
	"context"
	"sync"
	"time"

	"qa-service/internal/models"
	"qa-service/internal/repository"

	"github.com/jonboulle/clockwork"
)

type sessionEntry struct {
	user      models.User
	expiresAt time.Time
}

type SessionStore struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	sessions map[string]sessionEntry
}

func NewSessionStore(clk clockwork.Clock) *SessionStore {
	return &SessionStore{clock: clk, sessions: make(map[string]sessionEntry)}
}

func (s *SessionStore) SaveSession(ctx context.Context, token string, user *models.User, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = sessionEntry{user: *user, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.clock.Now().After(entry.expiresAt) {
		_ = s.DeleteSession(ctx, token)
		return nil, repository.ErrNotFound
	}
	u := entry.user
	return &u, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
