package models

import "time"

type QuestionStatus string

const (
	StatusPending          QuestionStatus = "pending"
	StatusAnswered         QuestionStatus = "answered"
	StatusFlaggedForReview QuestionStatus = "flagged_for_review"
)

type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "Beginner"
	DifficultyIntermediate DifficultyLevel = "Intermediate"
	DifficultyAdvanced     DifficultyLevel = "Advanced"
)

func (d DifficultyLevel) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Placeholder metadata carried by a question until analysis completes.
const (
	PendingSubject = "Pending Analysis"
	PendingTopic   = "Pending Analysis"
	PendingGrade   = "Not Specified"
)

type Question struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	QuestionText    string          `json:"question_text"`
	Subject         string          `json:"subject"`
	Topic           string          `json:"topic"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level"`
	GradeLevel      string          `json:"grade_level"`
	Status          QuestionStatus  `json:"status"`
	Answer          *string         `json:"answer,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	c := *q
	if q.Answer != nil {
		a := *q.Answer
		c.Answer = &a
	}
	return &c
}

// QuestionMetadata is the categorizer's view of a question.
type QuestionMetadata struct {
	Subject         string          `json:"subject"`
	Topic           string          `json:"topic"`
	DifficultyLevel DifficultyLevel `json:"difficultyLevel"`
	GradeLevel      string          `json:"gradeLevel"`
	Confidence      float64         `json:"confidence"`
}

type DashboardStats struct {
	Total            int `json:"total"`
	Answered         int `json:"answered"`
	Pending          int `json:"pending"`
	FlaggedForReview int `json:"flagged_for_review"`
}
