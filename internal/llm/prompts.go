package llm

import "fmt"

func analysisPrompt(questionText string) string {
	return fmt.Sprintf(`Analyze the following academic question and extract metadata in JSON format.

Question: %q

Please provide a JSON response with the following structure:
{
  "subject": "The main academic subject (e.g., Mathematics, Physics, Chemistry, Biology, History, Literature, Computer Science)",
  "topic": "Specific topic within the subject (e.g., Algebra, Mechanics, Organic Chemistry, Cell Biology, World War II, Shakespeare)",
  "difficultyLevel": "One of: Beginner, Intermediate, Advanced",
  "gradeLevel": "Appropriate grade level (e.g., 9th grade, 12th grade, College, University)",
  "confidence": "Confidence score between 0.0 and 1.0"
}

Guidelines:
- Subject should be a broad academic discipline
- Topic should be specific and relevant to the question
- Difficulty level should reflect the complexity of the question
- Grade level should indicate the appropriate academic level
- Confidence should reflect how certain you are about the categorization
- Only return valid JSON, no additional text or explanations

Response:`, questionText)
}

func answerPrompt(questionText, subject, topic string) string {
	return fmt.Sprintf(`You are a patient tutor helping a student with a %s question about %s.

Question: %q

Explain the answer step by step in plain text. Keep it concise, show any working, and end with a one-line summary of the result.`, subject, topic, questionText)
}
