package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"qa-service/internal/models"
	"qa-service/internal/repository"
)

const sessionTokenBytes = 32

// SessionService maps opaque bearer tokens to the signed-in user.
type SessionService struct {
	store repository.SessionStore
	ttl   time.Duration
}

func NewSessionService(store repository.SessionStore, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{store: store, ttl: ttl}
}

func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *SessionService) Create(ctx context.Context, user *models.User) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	if err := s.store.SaveSession(ctx, token, user, s.ttl); err != nil {
		return "", fmt.Errorf("%w: save session: %v", ErrPersistence, err)
	}
	return token, nil
}

// Get returns ErrUnauthorized for unknown or expired tokens.
func (s *SessionService) Get(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.store.GetSession(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", ErrPersistence, err)
	}
	return user, nil
}

func (s *SessionService) Delete(ctx context.Context, token string) error {
	if err := s.store.DeleteSession(ctx, token); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: delete session: %v", ErrPersistence, err)
	}
	return nil
}
