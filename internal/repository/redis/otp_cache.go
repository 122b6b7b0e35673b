package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"qa-service/internal/client"
	"qa-service/internal/models"
	"qa-service/internal/repository"
	"qa-service/internal/util"
)

const (
	otpPrefix = "otp:"

	// Keys outlive the code by this much so a late verify still sees "expired"
	// instead of "not found".
	otpExpiryGrace = time.Minute
	opTimeout      = 5 * time.Second
)

// KV is the slice of the Redis client the caches use. *client.RedisClient
// satisfies it.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	ScanAll(ctx context.Context, pattern string, count int64) ([]string, error)
}

type OTPCache struct {
	client KV
}

func NewOTPCache(client KV) *OTPCache {
	return &OTPCache{client: client}
}

func otpKey(mobile string) string {
	return otpPrefix + mobile
}

func otpTTL(record *models.OTPRecord) time.Duration {
	ttl := record.ExpiresAt.Sub(record.CreatedAt) + otpExpiryGrace
	if ttl < otpExpiryGrace {
		return otpExpiryGrace
	}
	return ttl
}

func (c *OTPCache) SaveOTP(ctx context.Context, record *models.OTPRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode OTP record: %w", err)
	}

	ttl := otpTTL(record)
	if err := c.client.Set(ctx, otpKey(record.MobileNumber), payload, ttl); err != nil {
		util.Error("Failed to set OTP in cache",
			zap.String("mobile", util.MaskMobile(record.MobileNumber)),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to set OTP in cache: %w", err)
	}
	return nil
}

func (c *OTPCache) GetOTP(ctx context.Context, mobile string) (*models.OTPRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, otpKey(mobile))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get OTP from cache: %w", err)
	}

	var record models.OTPRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to decode OTP record: %w", err)
	}
	return &record, nil
}

func (c *OTPCache) DeleteOTP(ctx context.Context, mobile string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, otpKey(mobile)); err != nil {
		util.Error("Failed to delete OTP from cache",
			zap.String("mobile", util.MaskMobile(mobile)),
			zap.Error(err))
		return fmt.Errorf("failed to delete OTP from cache: %w", err)
	}
	return nil
}

// DeleteExpiredOTPs removes codes that are past expiry but still inside the key grace window.
func (c *OTPCache) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int, error) {
	keys, err := c.client.ScanAll(ctx, otpPrefix+"*", 500)
	if err != nil {
		return 0, fmt.Errorf("failed to scan OTP keys: %w", err)
	}

	removed := 0
	for _, key := range keys {
		mobile := strings.TrimPrefix(key, otpPrefix)
		record, err := c.GetOTP(ctx, mobile)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return removed, err
		}
		if !record.IsExpired(now) {
			continue
		}
		if err := c.DeleteOTP(ctx, mobile); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
