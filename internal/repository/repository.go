package repository

import (
	"context"
	"errors"
	"time"

	"qa-service/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// OTPStore holds at most one active code per mobile number.
type OTPStore interface {
	SaveOTP(ctx context.Context, record *models.OTPRecord) error
	// GetOTP returns ErrNotFound when no record exists. Expired records may still be returned.
	GetOTP(ctx context.Context, mobile string) (*models.OTPRecord, error)
	DeleteOTP(ctx context.Context, mobile string) error
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int, error)
}

type UserRepository interface {
	// CreateUser returns ErrDuplicate when the mobile number is already registered.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (*models.User, error)
	HealthCheck(ctx context.Context) error
}

type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestionByID(ctx context.Context, questionID string) (*models.Question, error)
	// GetQuestionsByUserID returns the user's questions newest first.
	GetQuestionsByUserID(ctx context.Context, userID string) ([]*models.Question, error)
	UpdateQuestionMetadata(ctx context.Context, questionID string, meta *models.QuestionMetadata, updatedAt time.Time) error
	UpdateQuestionAnswer(ctx context.Context, questionID, answer string, updatedAt time.Time) error
	DeleteQuestionsCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
	HealthCheck(ctx context.Context) error
}

type SessionStore interface {
	SaveSession(ctx context.Context, token string, user *models.User, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// QuestionIndex is a searchable projection of the question store.
type QuestionIndex interface {
	IndexQuestion(ctx context.Context, q *models.Question) error
	SearchQuestions(ctx context.Context, userID, query string) ([]*models.Question, error)
	DeleteQuestionsCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
