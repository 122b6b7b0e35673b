package scylla

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"qa-service/internal/bucketing"
	"qa-service/internal/encryption"
	"qa-service/internal/hashing"
	"qa-service/internal/models"
	"qa-service/internal/repository"
	"qa-service/internal/util"
)

const (
	insertPhoneToUser = `INSERT INTO phone_to_user (phone_hash, user_bucket, user_id, created_at)
        VALUES (?, ?, ?, ?) IF NOT EXISTS`

	insertUser = `INSERT INTO users (user_bucket, user_id, full_name, phone_hash,
        phone_encrypted, phone_dek, phone_key_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectUserByID = `SELECT user_id, full_name, phone_encrypted, phone_dek, phone_key_id, created_at
        FROM users WHERE user_bucket = ? AND user_id = ?`

	selectUserByPhone = `SELECT user_id FROM phone_to_user WHERE phone_hash = ?`
)

// UserRepository stores users by bucket. The mobile number is only kept as a
// lookup hash plus an envelope-encrypted copy.
type UserRepository struct {
	client    *ScyllaClient
	hasher    *hashing.Hasher
	encryptor *encryption.EncryptionManager
	buckets   *bucketing.BucketingManager
}

func NewUserRepository(client *ScyllaClient, hasher *hashing.Hasher, encryptor *encryption.EncryptionManager, buckets *bucketing.BucketingManager) *UserRepository {
	return &UserRepository{
		client:    client,
		hasher:    hasher,
		encryptor: encryptor,
		buckets:   buckets,
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	phoneHash := r.hasher.LookupHash(user.MobileNumber)
	bucket := r.buckets.GetUserBucket(user.ID)

	encrypted, err := r.encryptor.EncryptField(ctx, user.MobileNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile number: %w", err)
	}

	// Claim the mobile number first; the conditional insert is the uniqueness guard.
	existing := map[string]interface{}{}
	applied, err := r.client.Query(ctx, insertPhoneToUser, phoneHash, bucket, user.ID, user.CreatedAt).
		MapScanCAS(existing)
	if err != nil {
		return fmt.Errorf("failed to reserve mobile number: %w", err)
	}
	if !applied {
		return repository.ErrDuplicate
	}

	query := r.client.Query(ctx, insertUser,
		bucket, user.ID, user.FullName, phoneHash,
		encrypted.EncryptedValue, encrypted.EncryptedDEK, encrypted.KeyID, user.CreatedAt)
	if err := r.client.ExecuteWithRetry(ctx, query, 2); err != nil {
		util.Error("Failed to create user",
			zap.String("user_id", user.ID),
			zap.Error(err))
		_ = r.client.Query(ctx, `DELETE FROM phone_to_user WHERE phone_hash = ?`, phoneHash).Exec()
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		zap.String("user_id", user.ID),
		zap.Int("user_bucket", bucket))
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var (
		user   models.User
		enc    encryption.EncryptedData
		bucket = r.buckets.GetUserBucket(userID)
	)

	query := r.client.Query(ctx, selectUserByID, bucket, userID)
	err := r.client.ScanWithRetry(ctx, query,
		&user.ID, &user.FullName, &enc.EncryptedValue, &enc.EncryptedDEK, &enc.KeyID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	mobile, err := r.encryptor.DecryptField(ctx, &enc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt mobile number: %w", err)
	}
	user.MobileNumber = mobile
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (r *UserRepository) GetUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	var userID string
	query := r.client.Query(ctx, selectUserByPhone, r.hasher.LookupHash(mobile))
	if err := r.client.ScanWithRetry(ctx, query, &userID); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by mobile: %w", err)
	}
	return r.GetUserByID(ctx, userID)
}

func (r *UserRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
