package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/quietrade/ticker-digest/internal/platform/observability"
)

type openaiClient struct {
	cfg    Config
	client *openai.Client
	logger *zerolog.Logger

	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
	rateLimiterBurst        = 5
	maxPromptChars          = 48000
)

// NewOpenAI creates the production extraction client.
func NewOpenAI(cfg Config, logger *zerolog.Logger) Client {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}

	return &openaiClient{
		cfg:         cfg,
		client:      openai.NewClient(cfg.APIKey),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rps)), rateLimiterBurst),
	}
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("circuit breaker is open until %v", c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

const extractionPrompt = `Analyze this %s content and extract every stock ticker discussed with an investment view.

Return a JSON object:
{
  "tickers": [
    {
      "ticker": "NVDA",
      "sentiment": "bullish",
      "conviction_score": 75,
      "timeframe": "medium_term",
      "context": "one-sentence snippet of the argument"
    }
  ],
  "is_contrarian": false,
  "is_disruption_focused": false
}

Rules:
- ticker: uppercase exchange symbol, 2-5 letters. Skip index names, crypto, and private companies.
- sentiment: bullish | bearish | neutral.
- conviction_score: -100..100. 90+ for a full thesis or deep dive, 70-89 strong preference, 50-69 positive mention, 0-49 tracking/watching. Negative for explicit bearish or "crowded trade" warnings.
- timeframe: short_term | medium_term | long_term | unspecified.
- is_contrarian: true if the speaker explicitly goes against consensus ("unloved", "underowned").
- is_disruption_focused: true if discussing paradigm shifts, game changers, industry transformation.
- Return {"tickers": []} when no ticker carries an investment view.

Source: %s
Title: %s

Content:
%s`

func (c *openaiClient) Extract(ctx context.Context, text, sourceName, title string) (*Extraction, error) {
	if err := c.checkCircuit(); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	model := c.cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	prompt := fmt.Sprintf(extractionPrompt, "finance", sourceName, title, truncate(text, maxPromptChars))

	started := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(started).Seconds())

	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.recordFailure()
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &extraction); err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	c.recordSuccess()

	return &extraction, nil
}

// extractJSON strips markdown fences the model sometimes wraps around the
// payload despite the JSON response format.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	return strings.TrimSpace(content)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen]
}
