package llm

import (
	"context"
	"errors"
	"math"
	"testing"

	"qa-service/internal/models"
)

func TestMockAnalyzeCategories(t *testing.T) {
	cases := []struct {
		text       string
		subject    string
		topic      string
		difficulty models.DifficultyLevel
		grade      string
		confidence float64
	}{
		{"Solve the equation 2x + 3 = 7", "Mathematics", "Algebra", models.DifficultyIntermediate, "9th-12th grade", 0.74},
		{"Find the derivative in calculus of sin x", "Mathematics", "Calculus", models.DifficultyAdvanced, "College", 0.67},
		{"Explain the force acting on a falling apple", "Physics", "Mechanics", models.DifficultyIntermediate, "11th-12th grade", 0.67},
		{"Describe a molecule of water in a chemical reaction", "Chemistry", "Chemical Reactions", models.DifficultyIntermediate, "10th-11th grade", 0.74},
		{"Explain the structure of a plant cell", "Biology", "Cell Biology", models.DifficultyIntermediate, "9th-10th grade", 0.6},
		{"Explain the causes of the first world war", "History", "World History", models.DifficultyBeginner, "9th-12th grade", 0.6},
		{"Explain the poem Ozymandias and its author", "Literature", "General Literature", models.DifficultyIntermediate, "9th-12th grade", 0.6},
		{"Explain a sorting algorithm for beginners", "Computer Science", "Programming", models.DifficultyIntermediate, "College", 0.6},
		{"What is photosynthesis in plants?", "General Knowledge", "General Inquiry", models.DifficultyBeginner, "High School", 0.88},
		{"Tell me about photosynthesis in plants", "General", "General", models.DifficultyBeginner, "High School", 0.6},
	}

	m := NewMockLLM()
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			meta, err := m.Analyze(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("analyze: %v", err)
			}
			if meta.Subject != tc.subject || meta.Topic != tc.topic ||
				meta.DifficultyLevel != tc.difficulty || meta.GradeLevel != tc.grade {
				t.Fatalf("unexpected metadata: %+v", meta)
			}
			if math.Abs(meta.Confidence-tc.confidence) > 1e-9 {
				t.Fatalf("confidence = %v, want %v", meta.Confidence, tc.confidence)
			}
		})
	}
}

func TestMockConfidenceCapped(t *testing.T) {
	text := "calculate the number: solve the algebra equation 2 + 2"
	if got := mockConfidence(text, "Mathematics"); math.Abs(got-0.95) > 1e-9 {
		t.Fatalf("expected cap at 0.95, got %v", got)
	}
}

func TestMockGenerate(t *testing.T) {
	m := NewMockLLM()
	ctx := context.Background()

	answer, _ := m.Generate(ctx, "How do I solve a quadratic equation?", "Mathematics", "Algebra")
	if answer == genericAnswer {
		t.Fatal("expected the quadratic answer")
	}
	answer, _ = m.Generate(ctx, "Explain linear equations", "Mathematics", "Algebra")
	if answer != genericAnswer {
		t.Fatal("non-quadratic algebra should get the generic answer")
	}
	answer, _ = m.Generate(ctx, "Why do objects fall?", "Physics", "Mechanics")
	if answer == genericAnswer {
		t.Fatal("expected the mechanics answer")
	}
}

func TestMockRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockLLM().Analyze(ctx, "What is gravity?"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	cases := map[error]string{
		ErrNotConfigured: "LLM service is not configured. Please contact support.",
		ErrRateLimited:   "Too many requests. Please wait a moment and try again.",
		ErrTimeout:       "Request timed out. Please try again.",
		ErrLowConfidence: "Unable to analyze question with sufficient confidence. Please try rephrasing.",
		ErrUnavailable:   "LLM service is temporarily unavailable. Please try again later.",
	}
	for err, want := range cases {
		if got := Describe(err); got != want {
			t.Errorf("Describe(%v) = %q, want %q", err, got, want)
		}
		if !IsKnown(err) {
			t.Errorf("IsKnown(%v) = false", err)
		}
	}
	if IsKnown(errors.New("other")) {
		t.Fatal("unrelated errors are not LLM errors")
	}
}
