package analytics

import (
	"context"
	"fmt"

	"qa-service/internal/models"
)

const (
	createAnalysisTable = `CREATE TABLE IF NOT EXISTS question_analysis (
    question_id String,
    user_id String,
    subject LowCardinality(String),
    topic String,
    difficulty_level LowCardinality(String),
    grade_level LowCardinality(String),
    confidence_score Float64,
    llm_provider LowCardinality(String),
    analyzed_at DateTime64(3, 'UTC'),
    analyzed_date Date
) ENGINE = MergeTree
PARTITION BY toYYYYMM(analyzed_date)
ORDER BY (subject, analyzed_at, question_id)`

	insertAnalysis = `INSERT INTO question_analysis (question_id, user_id, subject, topic,
    difficulty_level, grade_level, confidence_score, llm_provider, analyzed_at, analyzed_date)`
)

// Store is satisfied by client.ClickHouseClient.
type Store interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	BatchInsert(ctx context.Context, query string, data [][]interface{}) error
}

// ClickHouseRecorder appends one row per successful categorization.
type ClickHouseRecorder struct {
	store Store
}

func NewClickHouseRecorder(store Store) *ClickHouseRecorder {
	return &ClickHouseRecorder{store: store}
}

func (r *ClickHouseRecorder) EnsureTable(ctx context.Context) error {
	if err := r.store.Exec(ctx, createAnalysisTable); err != nil {
		return fmt.Errorf("failed to create question_analysis table: %w", err)
	}
	return nil
}

func (r *ClickHouseRecorder) Record(ctx context.Context, rec models.AnalysisRecord) error {
	row := []interface{}{
		rec.QuestionID,
		rec.UserID,
		rec.Subject,
		rec.Topic,
		string(rec.DifficultyLevel),
		rec.GradeLevel,
		rec.Confidence,
		rec.Provider,
		rec.AnalyzedAt.UTC(),
		rec.AnalyzedAt.UTC(),
	}
	if err := r.store.BatchInsert(ctx, insertAnalysis, [][]interface{}{row}); err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}
