package llm

import (
	"context"
	"errors"

	"qa-service/internal/models"
)

var (
	ErrNotConfigured = errors.New("llm provider is not configured")
	ErrUnavailable   = errors.New("llm provider unavailable")
	ErrTimeout       = errors.New("llm request timed out")
	ErrLowConfidence = errors.New("llm analysis below confidence threshold")
	ErrRateLimited   = errors.New("llm provider rate limited")
)

// Categorizer extracts subject/topic/difficulty/grade metadata from question text.
type Categorizer interface {
	Analyze(ctx context.Context, questionText string) (*models.QuestionMetadata, error)
}

// AnswerGenerator produces an answer given the question and its categorization.
type AnswerGenerator interface {
	Generate(ctx context.Context, questionText, subject, topic string) (string, error)
}

// Describe returns the user-facing message for an LLM failure.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "LLM service is not configured. Please contact support."
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please wait a moment and try again."
	case errors.Is(err, ErrTimeout):
		return "Request timed out. Please try again."
	case errors.Is(err, ErrLowConfidence):
		return "Unable to analyze question with sufficient confidence. Please try rephrasing."
	default:
		return "LLM service is temporarily unavailable. Please try again later."
	}
}

// IsKnown reports whether err belongs to the LLM failure taxonomy.
func IsKnown(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrLowConfidence) ||
		errors.Is(err, ErrRateLimited)
}
