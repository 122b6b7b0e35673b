package models

import "time"

type QuestionEventType string

const (
	EventQuestionSubmitted      QuestionEventType = "question.submitted"
	EventQuestionCategorized    QuestionEventType = "question.categorized"
	EventQuestionAnswered       QuestionEventType = "question.answered"
	EventQuestionAnalysisFailed QuestionEventType = "question.analysis_failed"
)

type QuestionEvent struct {
	Type       QuestionEventType `json:"type"`
	QuestionID string            `json:"question_id"`
	UserID     string            `json:"user_id"`
	Status     QuestionStatus    `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// AnalysisRecord is one successful categorization, kept for reporting.
type AnalysisRecord struct {
	QuestionID      string
	UserID          string
	Subject         string
	Topic           string
	DifficultyLevel DifficultyLevel
	GradeLevel      string
	Confidence      float64
	Provider        string
	AnalyzedAt      time.Time
}
