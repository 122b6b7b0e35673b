package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qa-service/internal/llm"
	"qa-service/internal/models"
	"qa-service/internal/repository"
	"qa-service/internal/repository/memory"
	"qa-service/internal/util"
)

const MinQuestionLength = 10

const submitFailedMessage = "Failed to submit question. Please try again."

// EventPublisher receives question lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.QuestionEvent) error
}

// AnalysisRecorder stores successful categorizations for reporting.
type AnalysisRecorder interface {
	Record(ctx context.Context, rec models.AnalysisRecord) error
}

type QuestionOptions struct {
	// MinConfidence is the lowest categorizer confidence that is applied to a question.
	MinConfidence       float64
	Provider            string
	SeedSampleQuestions bool

	// AnalysisTimeout bounds categorization and answer generation together.
	// Zero leaves only the collaborators' own per-request timeouts.
	AnalysisTimeout time.Duration

	// Optional side channels. Nil disables them.
	Index    repository.QuestionIndex
	Events   EventPublisher
	Recorder AnalysisRecorder
}

type SubmitResult struct {
	Success  bool             `json:"success"`
	Question *models.Question `json:"question,omitempty"`
	Message  string           `json:"message"`
}

type Dashboard struct {
	Questions []*models.Question    `json:"questions"`
	Stats     models.DashboardStats `json:"stats"`
}

// QuestionService owns the question lifecycle from submission to answer.
type QuestionService struct {
	questions   repository.QuestionRepository
	categorizer llm.Categorizer
	generator   llm.AnswerGenerator
	clock       clockwork.Clock
	logger      *zap.Logger
	opts        QuestionOptions
}

func NewQuestionService(
	questions repository.QuestionRepository,
	categorizer llm.Categorizer,
	generator llm.AnswerGenerator,
	clk clockwork.Clock,
	logger *zap.Logger,
	opts QuestionOptions,
) *QuestionService {
	return &QuestionService{
		questions:   questions,
		categorizer: categorizer,
		generator:   generator,
		clock:       clk,
		logger:      logger,
		opts:        opts,
	}
}

// ValidateQuestionText rejects blank or too-short questions.
func ValidateQuestionText(text string) error {
	if len([]rune(strings.TrimSpace(text))) < MinQuestionLength {
		return ErrQuestionTooShort
	}
	return nil
}

// SubmitQuestion persists a pending question and then tries to categorize and
// answer it. Only a failure to persist the initial record is reported as
// failure; analysis problems are described in the result message.
func (s *QuestionService) SubmitQuestion(ctx context.Context, text string, user *models.User) (*SubmitResult, error) {
	now := s.clock.Now()
	q := &models.Question{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		QuestionText:    text,
		Subject:         models.PendingSubject,
		Topic:           models.PendingTopic,
		DifficultyLevel: models.DifficultyBeginner,
		GradeLevel:      models.PendingGrade,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.questions.CreateQuestion(ctx, q); err != nil {
		s.logger.Error("failed to persist question",
			util.String("user_id", user.ID),
			util.ErrorField(err),
		)
		return &SubmitResult{Success: false, Message: submitFailedMessage},
			fmt.Errorf("%w: create question: %v", ErrPersistence, err)
	}
	s.publish(ctx, q, models.EventQuestionSubmitted)

	// The question is stored from here on, so analysis no longer follows the
	// caller's cancellation and runs on its own budget instead.
	ctx, cancel := s.analysisContext(ctx)
	defer cancel()

	meta, err := s.categorize(ctx, q)
	if err != nil {
		s.logger.Warn("question analysis failed",
			util.String("question_id", q.ID),
			util.ErrorField(err),
		)
		s.publish(ctx, q, models.EventQuestionAnalysisFailed)
		return &SubmitResult{Success: true, Question: q, Message: analysisFailedMessage(err)}, nil
	}

	analyzed := fmt.Sprintf("Analyzed as %s - %s (%s level).", meta.Subject, meta.Topic, meta.DifficultyLevel)

	if err := s.answer(ctx, q); err != nil {
		s.logger.Warn("answer generation failed",
			util.String("question_id", q.ID),
			util.ErrorField(err),
		)
		return &SubmitResult{
			Success:  true,
			Question: q,
			Message:  "Question submitted successfully! " + analyzed + " Answer will be generated shortly.",
		}, nil
	}

	return &SubmitResult{
		Success:  true,
		Question: q,
		Message:  "Question submitted and answered successfully! " + analyzed,
	}, nil
}

func (s *QuestionService) analysisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.opts.AnalysisTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, s.opts.AnalysisTimeout)
}

func analysisFailedMessage(err error) string {
	if llm.IsKnown(err) {
		reason := strings.TrimRight(llm.Describe(err), ".")
		return fmt.Sprintf("Question submitted successfully! LLM analysis failed: %s. Analysis will be completed manually.", reason)
	}
	return "Question submitted successfully! LLM analysis encountered an error. Analysis will be completed manually."
}

// categorize applies trusted metadata to q and returns it.
func (s *QuestionService) categorize(ctx context.Context, q *models.Question) (*models.QuestionMetadata, error) {
	meta, err := s.categorizer.Analyze(ctx, q.QuestionText)
	if err != nil {
		return nil, err
	}
	if meta.Confidence < s.opts.MinConfidence {
		return nil, fmt.Errorf("%w: %.2f < %.2f", llm.ErrLowConfidence, meta.Confidence, s.opts.MinConfidence)
	}

	updatedAt := s.touch(q)
	if err := s.questions.UpdateQuestionMetadata(ctx, q.ID, meta, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: update metadata: %v", ErrPersistence, err)
	}
	q.Subject = meta.Subject
	q.Topic = meta.Topic
	q.DifficultyLevel = meta.DifficultyLevel
	q.GradeLevel = meta.GradeLevel
	q.UpdatedAt = updatedAt

	s.record(ctx, q, meta)
	s.publish(ctx, q, models.EventQuestionCategorized)
	return meta, nil
}

func (s *QuestionService) answer(ctx context.Context, q *models.Question) error {
	text, err := s.generator.Generate(ctx, q.QuestionText, q.Subject, q.Topic)
	if err != nil {
		return err
	}

	updatedAt := s.touch(q)
	if err := s.questions.UpdateQuestionAnswer(ctx, q.ID, text, updatedAt); err != nil {
		return fmt.Errorf("%w: update answer: %v", ErrPersistence, err)
	}
	q.Answer = &text
	q.Status = models.StatusAnswered
	q.UpdatedAt = updatedAt

	s.publish(ctx, q, models.EventQuestionAnswered)
	return nil
}

// touch returns the next updatedAt for q, always later than the current one.
func (s *QuestionService) touch(q *models.Question) time.Time {
	now := s.clock.Now()
	if !now.After(q.UpdatedAt) {
		now = q.UpdatedAt.Add(time.Millisecond)
	}
	return now
}

// publish fans a lifecycle change out to the event stream and search index.
// Failures are logged only.
func (s *QuestionService) publish(ctx context.Context, q *models.Question, eventType models.QuestionEventType) {
	if s.opts.Events == nil && s.opts.Index == nil {
		return
	}

	snapshot := q.Clone()
	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Events != nil {
		g.Go(func() error {
			event := models.QuestionEvent{
				Type:       eventType,
				QuestionID: snapshot.ID,
				UserID:     snapshot.UserID,
				Status:     snapshot.Status,
				OccurredAt: s.clock.Now(),
			}
			if err := s.opts.Events.Publish(gctx, event); err != nil {
				return fmt.Errorf("publish %s: %w", eventType, err)
			}
			return nil
		})
	}
	if s.opts.Index != nil && eventType != models.EventQuestionAnalysisFailed {
		g.Go(func() error {
			if err := s.opts.Index.IndexQuestion(gctx, snapshot); err != nil {
				return fmt.Errorf("index question: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("question side effect failed",
			util.String("question_id", q.ID),
			util.ErrorField(err),
		)
	}
}

func (s *QuestionService) record(ctx context.Context, q *models.Question, meta *models.QuestionMetadata) {
	if s.opts.Recorder == nil {
		return
	}
	err := s.opts.Recorder.Record(ctx, models.AnalysisRecord{
		QuestionID:      q.ID,
		UserID:          q.UserID,
		Subject:         meta.Subject,
		Topic:           meta.Topic,
		DifficultyLevel: meta.DifficultyLevel,
		GradeLevel:      meta.GradeLevel,
		Confidence:      meta.Confidence,
		Provider:        s.opts.Provider,
		AnalyzedAt:      q.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to record analysis",
			util.String("question_id", q.ID),
			util.ErrorField(err),
		)
	}
}

// GetQuestionsByUserID lists the user's questions, newest first.
func (s *QuestionService) GetQuestionsByUserID(ctx context.Context, userID string) ([]*models.Question, error) {
	questions, err := s.questions.GetQuestionsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list questions: %v", ErrPersistence, err)
	}
	return questions, nil
}

func (s *QuestionService) GetQuestionByID(ctx context.Context, questionID string) (*models.Question, error) {
	q, err := s.questions.GetQuestionByID(ctx, questionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get question: %v", ErrPersistence, err)
	}
	return q, nil
}

// ComputeStats counts questions by status.
func ComputeStats(questions []*models.Question) models.DashboardStats {
	stats := models.DashboardStats{Total: len(questions)}
	for _, q := range questions {
		switch q.Status {
		case models.StatusAnswered:
			stats.Answered++
		case models.StatusPending:
			stats.Pending++
		case models.StatusFlaggedForReview:
			stats.FlaggedForReview++
		}
	}
	return stats
}

func (s *QuestionService) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	questions, err := s.GetQuestionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Questions: questions, Stats: ComputeStats(questions)}, nil
}

// SearchQuestions matches the user's questions by subject, topic or text.
// The in-store filter is used when no index is configured or the index fails.
func (s *QuestionService) SearchQuestions(ctx context.Context, userID, query string) ([]*models.Question, error) {
	if s.opts.Index != nil {
		found, err := s.opts.Index.SearchQuestions(ctx, userID, query)
		if err == nil {
			return found, nil
		}
		s.logger.Warn("question index search failed, filtering store",
			util.String("user_id", userID),
			util.ErrorField(err),
		)
	}

	questions, err := s.GetQuestionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return memory.FilterQuestions(questions, query), nil
}

// PrepareNewUser seeds the sample questions for a fresh account when enabled.
func (s *QuestionService) PrepareNewUser(ctx context.Context, user *models.User) {
	if !s.opts.SeedSampleQuestions {
		return
	}
	n, err := s.SeedSampleQuestions(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to seed sample questions",
			util.String("user_id", user.ID),
			util.ErrorField(err),
		)
		return
	}
	s.logger.Debug("sample questions seeded", util.String("user_id", user.ID), util.Int("count", n))
}

// CleanupOldQuestions deletes questions created more than retention ago.
func (s *QuestionService) CleanupOldQuestions(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-retention)
	removed, err := s.questions.DeleteQuestionsCreatedBefore(ctx, cutoff)
	if err != nil {
		return removed, fmt.Errorf("failed to clean up questions: %w", err)
	}
	if s.opts.Index != nil {
		// Keep search from returning questions the store no longer has.
		if _, err := s.opts.Index.DeleteQuestionsCreatedBefore(ctx, cutoff); err != nil {
			return removed, fmt.Errorf("failed to prune question index: %w", err)
		}
	}
	if removed > 0 {
		s.logger.Info("old questions removed",
			util.Int("removed", removed),
			util.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
	return removed, nil
}
