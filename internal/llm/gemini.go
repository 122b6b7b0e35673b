package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qa-service/internal/config"
	"qa-service/internal/models"
)

const ProviderGemini = "gemini"

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

type GeminiOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

func GeminiOptionsFromConfig(cfg *config.Config) GeminiOptions {
	return GeminiOptions{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.APIURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryDelay:     cfg.LLM.RetryDelay,
	}
}

// GeminiClient talks to the generateContent endpoint. It implements both
// Categorizer and AnswerGenerator.
type GeminiClient struct {
	opts   GeminiOptions
	http   *http.Client
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewGeminiClient(opts GeminiOptions, httpClient *http.Client, clk clockwork.Clock, logger *zap.Logger) *GeminiClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &GeminiClient{opts: opts, http: httpClient, clock: clk, logger: logger}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
		TopP            float64 `json:"topP"`
		TopK            int     `json:"topK"`
	} `json:"generationConfig"`
	SafetySettings []safetySetting `json:"safetySettings"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (g *GeminiClient) Analyze(ctx context.Context, questionText string) (*models.QuestionMetadata, error) {
	text, err := g.generateText(ctx, analysisPrompt(questionText))
	if err != nil {
		return nil, err
	}
	meta, err := ParseAnalysis(text)
	if err != nil {
		g.logger.Warn("Unparseable categorization response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLowConfidence, err)
	}
	return meta, nil
}

func (g *GeminiClient) Generate(ctx context.Context, questionText, subject, topic string) (string, error) {
	text, err := g.generateText(ctx, answerPrompt(questionText, subject, topic))
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(text)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", ErrUnavailable)
	}
	return answer, nil
}

// generateText runs the request with a per-attempt timeout and a fixed delay
// between attempts. Rate limiting is returned immediately.
func (g *GeminiClient) generateText(ctx context.Context, prompt string) (string, error) {
	if g.opts.APIKey == "" || g.opts.BaseURL == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(g.buildRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxRetries; attempt++ {
		text, err := g.doRequest(ctx, body)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrRateLimited) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", contextError(ctx)
		}
		lastErr = err

		g.logger.Warn("LLM request attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.opts.MaxRetries),
			zap.Error(err))

		if attempt < g.opts.MaxRetries {
			select {
			case <-ctx.Done():
				return "", contextError(ctx)
			case <-g.clock.After(g.opts.RetryDelay):
			}
		}
	}

	if errors.Is(lastErr, ErrTimeout) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// contextError maps a finished caller context onto the LLM error taxonomy.
func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
}

func (g *GeminiClient) doRequest(ctx context.Context, body []byte) (string, error) {
	attemptCtx := ctx
	if g.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.opts.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", ErrTimeout
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", errors.New("no response from LLM")
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func (g *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(g.opts.BaseURL, "/"), g.opts.Model, url.QueryEscape(g.opts.APIKey))
}

func (g *GeminiClient) buildRequest(prompt string) geminiRequest {
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	req.GenerationConfig.Temperature = g.opts.Temperature
	req.GenerationConfig.MaxOutputTokens = g.opts.MaxTokens
	req.GenerationConfig.TopP = 0.8
	req.GenerationConfig.TopK = 40
	req.SafetySettings = []safetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	}
	return req
}

// ParseAnalysis extracts and validates the JSON object in a categorization reply.
func ParseAnalysis(text string) (*models.QuestionMetadata, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, errors.New("no JSON object in response")
	}

	var parsed struct {
		Subject         string   `json:"subject"`
		Topic           string   `json:"topic"`
		DifficultyLevel string   `json:"difficultyLevel"`
		GradeLevel      string   `json:"gradeLevel"`
		Confidence      *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if parsed.Subject == "" || parsed.Topic == "" || parsed.DifficultyLevel == "" ||
		parsed.GradeLevel == "" || parsed.Confidence == nil {
		return nil, errors.New("missing required fields")
	}
	difficulty := models.DifficultyLevel(parsed.DifficultyLevel)
	if !difficulty.Valid() {
		return nil, fmt.Errorf("invalid difficulty level %q", parsed.DifficultyLevel)
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", *parsed.Confidence)
	}

	return &models.QuestionMetadata{
		Subject:         parsed.Subject,
		Topic:           parsed.Topic,
		DifficultyLevel: difficulty,
		GradeLevel:      parsed.GradeLevel,
		Confidence:      *parsed.Confidence,
	}, nil
}
