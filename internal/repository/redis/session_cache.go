package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"qa-service/internal/client"
	"qa-service/internal/models"
	"qa-service/internal/repository"
	"qa-service/internal/util"
)

const sessionPrefix = "session:"

type SessionCache struct {
	client KV
}

func NewSessionCache(client KV) *SessionCache {
	return &SessionCache{client: client}
}

func sessionKey(token string) string {
	return sessionPrefix + token
}

func (c *SessionCache) SaveSession(ctx context.Context, token string, user *models.User, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := c.client.Set(ctx, sessionKey(token), payload, ttl); err != nil {
		util.Error("Failed to store session", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (c *SessionCache) GetSession(ctx context.Context, token string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, sessionKey(token))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &user, nil
}

func (c *SessionCache) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
