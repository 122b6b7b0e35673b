package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qa-service/internal/models"
	"qa-service/internal/repository"

	"github.com/jonboulle/clockwork"
)

var base = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestOTPStoreOverwriteAndSweep(t *testing.T) {
	ctx := context.Background()
	s := NewOTPStore()

	if _, err := s.GetOTP(ctx, "9876543210"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = s.SaveOTP(ctx, &models.OTPRecord{MobileNumber: "9876543210", CodeHash: "a", ExpiresAt: base.Add(time.Minute)})
	_ = s.SaveOTP(ctx, &models.OTPRecord{MobileNumber: "9876543210", CodeHash: "b", ExpiresAt: base.Add(5 * time.Minute)})
	_ = s.SaveOTP(ctx, &models.OTPRecord{MobileNumber: "9123456789", CodeHash: "c", ExpiresAt: base.Add(time.Minute)})

	rec, err := s.GetOTP(ctx, "9876543210")
	if err != nil || rec.CodeHash != "b" {
		t.Fatalf("expected overwritten record, got %+v err=%v", rec, err)
	}

	removed, err := s.DeleteExpiredOTPs(ctx, base.Add(2*time.Minute))
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed, got %d err=%v", removed, err)
	}
	if _, err := s.GetOTP(ctx, "9123456789"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("expired record should be swept")
	}
	if _, err := s.GetOTP(ctx, "9876543210"); err != nil {
		t.Fatal("live record should survive the sweep")
	}
}

func TestUserRepositoryDuplicateMobile(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()

	u := &models.User{ID: "u1", FullName: "Asha", MobileNumber: "9876543210", CreatedAt: base}
	if err := r.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := r.CreateUser(ctx, &models.User{ID: "u2", FullName: "Other", MobileNumber: "9876543210"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := r.GetUserByMobile(ctx, "9876543210")
	if err != nil || got.ID != "u1" {
		t.Fatalf("lookup by mobile: %+v %v", got, err)
	}
	if _, err := r.GetUserByID(ctx, "u2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepositoryConcurrentSignupsOneWins(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.CreateUser(ctx, &models.User{ID: string(rune('a' + i)), MobileNumber: "9876543210"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one user, got %d", created)
	}
}

func question(id, user string, created time.Time) *models.Question {
	return &models.Question{
		ID:              id,
		UserID:          user,
		QuestionText:    "What is the derivative of x squared?",
		Subject:         models.PendingSubject,
		Topic:           models.PendingTopic,
		DifficultyLevel: models.DifficultyBeginner,
		GradeLevel:      models.PendingGrade,
		Status:          models.StatusPending,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestQuestionRepositoryNewestFirstAndIsolation(t *testing.T) {
	ctx := context.Background()
	r := NewQuestionRepository()

	_ = r.CreateQuestion(ctx, question("q1", "u1", base))
	_ = r.CreateQuestion(ctx, question("q2", "u1", base.Add(time.Hour)))
	_ = r.CreateQuestion(ctx, question("q3", "u2", base.Add(2*time.Hour)))

	list, err := r.GetQuestionsByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "q2" || list[1].ID != "q1" {
		t.Fatalf("unexpected order: %v", ids(list))
	}

	// Mutating a returned copy must not leak into the store.
	list[0].Subject = "Hacked"
	again, _ := r.GetQuestionByID(ctx, "q2")
	if again.Subject != models.PendingSubject {
		t.Fatal("store returned shared state")
	}

	empty, err := r.GetQuestionsByUserID(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", empty, err)
	}
}

func TestQuestionRepositoryUpdates(t *testing.T) {
	ctx := context.Background()
	r := NewQuestionRepository()
	_ = r.CreateQuestion(ctx, question("q1", "u1", base))

	meta := &models.QuestionMetadata{Subject: "Mathematics", Topic: "Calculus", DifficultyLevel: models.DifficultyAdvanced, GradeLevel: "College"}
	if err := r.UpdateQuestionMetadata(ctx, "q1", meta, base.Add(time.Second)); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if err := r.UpdateQuestionAnswer(ctx, "q1", "2x", base.Add(2*time.Second)); err != nil {
		t.Fatalf("answer: %v", err)
	}

	q, _ := r.GetQuestionByID(ctx, "q1")
	if q.Subject != "Mathematics" || q.Status != models.StatusAnswered || q.Answer == nil || *q.Answer != "2x" {
		t.Fatalf("unexpected question: %+v", q)
	}
	if !q.UpdatedAt.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("unexpected updatedAt %v", q.UpdatedAt)
	}

	if err := r.UpdateQuestionAnswer(ctx, "missing", "x", base); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestionRepositorySearchAndRetention(t *testing.T) {
	ctx := context.Background()
	r := NewQuestionRepository()

	old := question("q1", "u1", base)
	old.Subject = "Physics"
	old.Topic = "Mechanics"
	_ = r.CreateQuestion(ctx, old)
	_ = r.CreateQuestion(ctx, question("q2", "u1", base.Add(48*time.Hour)))

	found, _ := r.SearchQuestions(ctx, "u1", "MECHANICS")
	if len(found) != 1 || found[0].ID != "q1" {
		t.Fatalf("topic search: %v", ids(found))
	}
	found, _ = r.SearchQuestions(ctx, "u1", "derivative")
	if len(found) != 2 {
		t.Fatalf("text search: %v", ids(found))
	}

	removed, _ := r.DeleteQuestionsCreatedBefore(ctx, base.Add(24*time.Hour))
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(base)
	s := NewSessionStore(clk)

	_ = s.SaveSession(ctx, "tok", &models.User{ID: "u1"}, time.Hour)
	if u, err := s.GetSession(ctx, "tok"); err != nil || u.ID != "u1" {
		t.Fatalf("get: %+v %v", u, err)
	}

	clk.Advance(2 * time.Hour)
	if _, err := s.GetSession(ctx, "tok"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func ids(qs []*models.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}
