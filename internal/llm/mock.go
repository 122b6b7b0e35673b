package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"qa-service/internal/models"
)

const (
	ProviderMock = "mock"

	// The mock refuses to categorize below this confidence.
	MockMinConfidence = 0.5

	genericAnswer = "This is a comprehensive answer based on your question. The response covers the key concepts, provides examples, and explains the reasoning step by step."
)

// MockLLM categorizes by keyword matching and returns canned answers.
// It is deterministic and never calls out of process.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

type category struct {
	subject, topic string
	difficulty     models.DifficultyLevel
	grade          string
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func (m *MockLLM) Analyze(ctx context.Context, questionText string) (*models.QuestionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.ToLower(questionText)
	c := categorize(text)
	confidence := mockConfidence(text, c.subject)
	if confidence < MockMinConfidence {
		return nil, ErrLowConfidence
	}

	return &models.QuestionMetadata{
		Subject:         c.subject,
		Topic:           c.topic,
		DifficultyLevel: c.difficulty,
		GradeLevel:      c.grade,
		Confidence:      confidence,
	}, nil
}

func categorize(text string) category {
	switch {
	case containsAny(text, "math", "calculate", "equation", "+", "-", "*", "/", "algebra", "geometry", "calculus"):
		switch {
		case containsAny(text, "algebra", "equation"):
			return category{"Mathematics", "Algebra", models.DifficultyIntermediate, "9th-12th grade"}
		case containsAny(text, "calculus", "derivative"):
			return category{"Mathematics", "Calculus", models.DifficultyAdvanced, "College"}
		case containsAny(text, "geometry"):
			return category{"Mathematics", "Geometry", models.DifficultyIntermediate, "9th-12th grade"}
		default:
			return category{"Mathematics", "Basic Math", models.DifficultyBeginner, "6th-8th grade"}
		}
	case containsAny(text, "physics", "force", "energy", "motion"):
		return category{"Physics", "Mechanics", models.DifficultyIntermediate, "11th-12th grade"}
	case containsAny(text, "chemistry", "molecule", "reaction"):
		return category{"Chemistry", "Chemical Reactions", models.DifficultyIntermediate, "10th-11th grade"}
	case containsAny(text, "biology", "cell", "organism"):
		return category{"Biology", "Cell Biology", models.DifficultyIntermediate, "9th-10th grade"}
	case containsAny(text, "history", "war", "ancient", "civilization"):
		return category{"History", "World History", models.DifficultyBeginner, "9th-12th grade"}
	case containsAny(text, "literature", "book", "poem", "author"):
		return category{"Literature", "General Literature", models.DifficultyIntermediate, "9th-12th grade"}
	case containsAny(text, "programming", "code", "algorithm", "computer"):
		return category{"Computer Science", "Programming", models.DifficultyIntermediate, "College"}
	case containsAny(text, "what", "how", "why", "when", "where"):
		return category{"General Knowledge", "General Inquiry", models.DifficultyBeginner, "High School"}
	default:
		return category{"General", "General", models.DifficultyBeginner, "High School"}
	}
}

var confidenceKeywords = map[string][][]string{
	"Mathematics": {
		{"math", "calculate"},
		{"+", "-", "*", "/"},
		{"equation", "solve"},
		{"algebra", "geometry", "calculus"},
		{"number", "digit"},
	},
	"Physics": {
		{"physics", "force"},
		{"energy", "motion"},
		{"velocity", "acceleration"},
		{"mass", "weight"},
		{"gravity", "magnetic"},
	},
	"Chemistry": {
		{"chemistry", "molecule"},
		{"reaction", "chemical"},
		{"atom", "element"},
		{"acid", "base"},
		{"solution", "mixture"},
	},
}

// mockConfidence is 0.6 plus up to 0.35 for keyword-group hits, capped at 0.95.
func mockConfidence(text, subject string) float64 {
	const groups = 5
	matches := 0
	if subject == "General Knowledge" {
		matches = 4
	}
	for _, group := range confidenceKeywords[subject] {
		if containsAny(text, group...) {
			matches++
		}
	}
	return math.Min(0.95, 0.6+float64(matches)/groups*0.35)
}

func (m *MockLLM) Generate(ctx context.Context, questionText, subject, topic string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.ToLower(questionText)
	switch {
	case subject == "Mathematics" && topic == "Algebra" && strings.Contains(text, "quadratic"):
		return "To solve quadratic equations, you can use:\n\n1) Factoring method\n2) Quadratic formula: x = (-b ± √(b² - 4ac)) / 2a\n3) Completing the square\n\nFor your specific equation, I recommend using the quadratic formula as it works for all quadratic equations.", nil
	case subject == "Mathematics" && topic == "Geometry":
		return "In geometry, you can solve problems using:\n\n1) Pythagorean theorem for right triangles\n2) Area and perimeter formulas\n3) Angle relationships and theorems\n4) Coordinate geometry methods", nil
	case subject == "Physics" && topic == "Mechanics":
		return "In mechanics, you can analyze:\n\n1) Forces and motion using Newton's laws\n2) Energy conservation (kinetic and potential)\n3) Momentum and collisions\n4) Circular motion and gravity", nil
	case subject == "Biology" && topic == "Cell Biology":
		return "Cell biology covers:\n\n1) Cell structure and organelles\n2) Cell division and reproduction\n3) Cellular processes like respiration\n4) Cell communication and signaling", nil
	case subject == "Chemistry" && topic == "Chemical Reactions":
		return "Chemical reactions involve:\n\n1) Reactants and products\n2) Balancing equations\n3) Reaction types (synthesis, decomposition, etc.)\n4) Energy changes and catalysts", nil
	}
	return genericAnswer, nil
}
