package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"qa-service/internal/models"
	"qa-service/internal/repository"
	"qa-service/internal/util"
)

const (
	questionColumns = `question_id, user_id, question_text, subject, topic, difficulty_level,
        grade_level, status, answer, created_at, updated_at`

	insertQuestion = `INSERT INTO questions (` + questionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertQuestionByUser = `INSERT INTO questions_by_user (` + questionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectQuestionByID = `SELECT ` + questionColumns + ` FROM questions WHERE question_id = ?`

	selectQuestionsByUser = `SELECT ` + questionColumns + ` FROM questions_by_user WHERE user_id = ?`

	selectQuestionKeys = `SELECT question_id, user_id, created_at FROM questions`

	updateMetadata = `UPDATE questions SET subject = ?, topic = ?, difficulty_level = ?,
        grade_level = ?, updated_at = ? WHERE question_id = ?`

	updateMetadataByUser = `UPDATE questions_by_user SET subject = ?, topic = ?, difficulty_level = ?,
        grade_level = ?, updated_at = ? WHERE user_id = ? AND created_at = ? AND question_id = ?`

	updateAnswer = `UPDATE questions SET answer = ?, status = ?, updated_at = ? WHERE question_id = ?`

	updateAnswerByUser = `UPDATE questions_by_user SET answer = ?, status = ?, updated_at = ?
        WHERE user_id = ? AND created_at = ? AND question_id = ?`

	deleteQuestion = `DELETE FROM questions WHERE question_id = ?`

	deleteQuestionByUser = `DELETE FROM questions_by_user WHERE user_id = ? AND created_at = ? AND question_id = ?`
)

// QuestionRepository keeps questions by id plus a per-user table clustered newest first.
// Both tables are written together in logged batches.
type QuestionRepository struct {
	client *ScyllaClient
}

func NewQuestionRepository(client *ScyllaClient) *QuestionRepository {
	return &QuestionRepository{client: client}
}

func questionValues(q *models.Question) []interface{} {
	return []interface{}{
		q.ID, q.UserID, q.QuestionText, q.Subject, q.Topic, string(q.DifficultyLevel),
		q.GradeLevel, string(q.Status), q.Answer, q.CreatedAt, q.UpdatedAt,
	}
}

func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	batch := r.client.Batch(ctx)
	batch.Query(insertQuestion, questionValues(q)...)
	batch.Query(insertQuestionByUser, questionValues(q)...)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create question",
			zap.String("question_id", q.ID),
			zap.String("user_id", q.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *QuestionRepository) GetQuestionByID(ctx context.Context, questionID string) (*models.Question, error) {
	var row questionRow
	query := r.client.Query(ctx, selectQuestionByID, questionID)
	if err := r.client.ScanWithRetry(ctx, query, row.dest()...); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return row.toModel(), nil
}

func (r *QuestionRepository) GetQuestionsByUserID(ctx context.Context, userID string) ([]*models.Question, error) {
	iter := r.client.Query(ctx, selectQuestionsByUser, userID).Iter()

	out := make([]*models.Question, 0)
	var row questionRow
	for iter.Scan(row.dest()...) {
		out = append(out, row.toModel())
		row = questionRow{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return out, nil
}

func (r *QuestionRepository) UpdateQuestionMetadata(ctx context.Context, questionID string, meta *models.QuestionMetadata, updatedAt time.Time) error {
	q, err := r.GetQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}

	batch := r.client.Batch(ctx)
	batch.Query(updateMetadata,
		meta.Subject, meta.Topic, string(meta.DifficultyLevel), meta.GradeLevel, updatedAt, questionID)
	batch.Query(updateMetadataByUser,
		meta.Subject, meta.Topic, string(meta.DifficultyLevel), meta.GradeLevel, updatedAt,
		q.UserID, q.CreatedAt, questionID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to update question metadata: %w", err)
	}
	return nil
}

func (r *QuestionRepository) UpdateQuestionAnswer(ctx context.Context, questionID, answer string, updatedAt time.Time) error {
	q, err := r.GetQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}

	status := string(models.StatusAnswered)
	batch := r.client.Batch(ctx)
	batch.Query(updateAnswer, answer, status, updatedAt, questionID)
	batch.Query(updateAnswerByUser, answer, status, updatedAt, q.UserID, q.CreatedAt, questionID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to update question answer: %w", err)
	}
	return nil
}

// DeleteQuestionsCreatedBefore does a full table walk; it is meant for the
// hourly retention job, not the request path.
func (r *QuestionRepository) DeleteQuestionsCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	iter := r.client.Query(ctx, selectQuestionKeys).Iter()

	var (
		id, userID string
		createdAt  time.Time
		removed    int
	)
	for iter.Scan(&id, &userID, &createdAt) {
		if !createdAt.Before(cutoff) {
			continue
		}
		batch := r.client.Batch(ctx)
		batch.Query(deleteQuestion, id)
		batch.Query(deleteQuestionByUser, userID, createdAt, id)
		if err := r.client.Session.ExecuteBatch(batch); err != nil {
			_ = iter.Close()
			return removed, fmt.Errorf("failed to delete question %s: %w", id, err)
		}
		removed++
	}
	if err := iter.Close(); err != nil {
		return removed, fmt.Errorf("failed to scan questions: %w", err)
	}
	return removed, nil
}

func (r *QuestionRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

type questionRow struct {
	id, userID, text, subject, topic string
	difficulty, grade, status        string
	answer                           *string
	createdAt, updatedAt             time.Time
}

func (row *questionRow) dest() []interface{} {
	return []interface{}{
		&row.id, &row.userID, &row.text, &row.subject, &row.topic, &row.difficulty,
		&row.grade, &row.status, &row.answer, &row.createdAt, &row.updatedAt,
	}
}

func (row *questionRow) toModel() *models.Question {
	q := &models.Question{
		ID:              row.id,
		UserID:          row.userID,
		QuestionText:    row.text,
		Subject:         row.subject,
		Topic:           row.topic,
		DifficultyLevel: models.DifficultyLevel(row.difficulty),
		GradeLevel:      row.grade,
		Status:          models.QuestionStatus(row.status),
		CreatedAt:       row.createdAt.UTC(),
		UpdatedAt:       row.updatedAt.UTC(),
	}
	if row.answer != nil {
		a := *row.answer
		q.Answer = &a
	}
	return q
}
