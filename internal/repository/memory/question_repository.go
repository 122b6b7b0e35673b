package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"qa-service/internal/models"
	"qa-service/internal/repository"
)

// QuestionRepository also serves as the fallback QuestionIndex.
type QuestionRepository struct {
	mu        sync.RWMutex
	questions map[string]*models.Question
}

func NewQuestionRepository() *QuestionRepository {
	return &QuestionRepository{questions: make(map[string]*models.Question)}
}

func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.questions[q.ID]; exists {
		return repository.ErrDuplicate
	}
	r.questions[q.ID] = q.Clone()
	return nil
}

func (r *QuestionRepository) GetQuestionByID(ctx context.Context, questionID string) (*models.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.questions[questionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q.Clone(), nil
}

func (r *QuestionRepository) GetQuestionsByUserID(ctx context.Context, userID string) ([]*models.Question, error) {
	r.mu.RLock()
	out := make([]*models.Question, 0)
	for _, q := range r.questions {
		if q.UserID == userID {
			out = append(out, q.Clone())
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (r *QuestionRepository) UpdateQuestionMetadata(ctx context.Context, questionID string, meta *models.QuestionMetadata, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[questionID]
	if !ok {
		return repository.ErrNotFound
	}
	q.Subject = meta.Subject
	q.Topic = meta.Topic
	q.DifficultyLevel = meta.DifficultyLevel
	q.GradeLevel = meta.GradeLevel
	q.UpdatedAt = updatedAt
	return nil
}

func (r *QuestionRepository) UpdateQuestionAnswer(ctx context.Context, questionID, answer string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[questionID]
	if !ok {
		return repository.ErrNotFound
	}
	q.Answer = &answer
	q.Status = models.StatusAnswered
	q.UpdatedAt = updatedAt
	return nil
}

func (r *QuestionRepository) DeleteQuestionsCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, q := range r.questions {
		if q.CreatedAt.Before(cutoff) {
			delete(r.questions, id)
			removed++
		}
	}
	return removed, nil
}

func (r *QuestionRepository) HealthCheck(ctx context.Context) error {
	return nil
}

// IndexQuestion is a no-op; the map is already the source of truth.
func (r *QuestionRepository) IndexQuestion(ctx context.Context, q *models.Question) error {
	return nil
}

// SearchQuestions matches subject, topic or text case-insensitively.
func (r *QuestionRepository) SearchQuestions(ctx context.Context, userID, query string) ([]*models.Question, error) {
	all, err := r.GetQuestionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterQuestions(all, query), nil
}

// FilterQuestions keeps questions whose subject, topic or text contains query.
func FilterQuestions(questions []*models.Question, query string) []*models.Question {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if needle == "" ||
			strings.Contains(strings.ToLower(q.Subject), needle) ||
			strings.Contains(strings.ToLower(q.Topic), needle) ||
			strings.Contains(strings.ToLower(q.QuestionText), needle) {
			out = append(out, q)
		}
	}
	return out
}

func sortNewestFirst(qs []*models.Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].ID > qs[j].ID
		}
		return qs[i].CreatedAt.After(qs[j].CreatedAt)
	})
}
