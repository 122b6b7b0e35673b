package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"qa-service/internal/models"
)

const quadraticAnswer = `To solve the quadratic equation x² + 5x + 6 = 0 using the quadratic formula:

1) First, identify the coefficients:
   a = 1, b = 5, c = 6

2) Apply the quadratic formula: x = (-b ± √(b² - 4ac)) / 2a

3) Substitute the values:
   x = (-5 ± √(25 - 24)) / 2
   x = (-5 ± √1) / 2
   x = (-5 ± 1) / 2

4) Calculate both solutions:
   x₁ = (-5 + 1) / 2 = -4 / 2 = -2
   x₂ = (-5 - 1) / 2 = -6 / 2 = -3

Therefore, the roots are x = -2 and x = -3.

You can verify by substituting these values back into the original equation.`

func sampleTime(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func sampleQuestions(userID string) []*models.Question {
	answer := quadraticAnswer
	return []*models.Question{
		{
			ID:              uuid.NewString(),
			UserID:          userID,
			QuestionText:    "How do I solve the quadratic equation x² + 5x + 6 = 0? I need to find the roots using the quadratic formula.",
			Subject:         "Mathematics",
			Topic:           "Algebra",
			DifficultyLevel: models.DifficultyIntermediate,
			GradeLevel:      "9th-12th grade",
			Status:          models.StatusAnswered,
			Answer:          &answer,
			CreatedAt:       sampleTime(15, 10, 30),
			UpdatedAt:       sampleTime(15, 11, 45),
		},
		{
			ID:              uuid.NewString(),
			UserID:          userID,
			QuestionText:    "What is the difference between potential energy and kinetic energy in physics? Can you give me some real-world examples?",
			Subject:         "Physics",
			Topic:           "Mechanics",
			DifficultyLevel: models.DifficultyIntermediate,
			GradeLevel:      "11th-12th grade",
			Status:          models.StatusPending,
			CreatedAt:       sampleTime(16, 14, 20),
			UpdatedAt:       sampleTime(16, 14, 20),
		},
		{
			ID:              uuid.NewString(),
			UserID:          userID,
			QuestionText:    "Explain the process of photosynthesis in plants. What are the main reactants and products?",
			Subject:         "Biology",
			Topic:           "Cell Biology",
			DifficultyLevel: models.DifficultyBeginner,
			GradeLevel:      "9th-10th grade",
			Status:          models.StatusFlaggedForReview,
			CreatedAt:       sampleTime(17, 9, 15),
			UpdatedAt:       sampleTime(17, 9, 15),
		},
	}
}

// SeedSampleQuestions gives a user with no questions the three demo
// questions. Users that already have questions are left alone.
func (s *QuestionService) SeedSampleQuestions(ctx context.Context, userID string) (int, error) {
	existing, err := s.questions.GetQuestionsByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: list questions: %v", ErrPersistence, err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeded := 0
	for _, q := range sampleQuestions(userID) {
		if err := s.questions.CreateQuestion(ctx, q); err != nil {
			return seeded, fmt.Errorf("%w: seed question: %v", ErrPersistence, err)
		}
		seeded++
		s.publish(ctx, q, models.EventQuestionSubmitted)
	}
	return seeded, nil
}
