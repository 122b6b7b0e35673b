package memory

import (
	"context"
	"sync"

	"qa-service/internal/models"
	"qa-service/internal/repository"
)

type UserRepository struct {
	mu       sync.RWMutex
	byID     map[string]models.User
	byMobile map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:     make(map[string]models.User),
		byMobile: make(map[string]string),
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byMobile[user.MobileNumber]; exists {
		return repository.ErrDuplicate
	}
	if _, exists := r.byID[user.ID]; exists {
		return repository.ErrDuplicate
	}
	r.byID[user.ID] = *user
	r.byMobile[user.MobileNumber] = user.ID
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byMobile[mobile]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *UserRepository) HealthCheck(ctx context.Context) error {
	return nil
}
