// Package llm wraps the extraction collaborator: given raw transcript or
// newsletter text it returns ticker mentions with sentiment, conviction,
// and timeframe. The payload is untrusted and must pass through Validate
// before anything is written to storage.
package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// TickerCall is the collaborator's judgement about one ticker. Conviction
// is a pointer so a missing field is distinguishable from an explicit zero;
// the pipeline resolves a missing one from the source text.
type TickerCall struct {
	Ticker          string `json:"ticker"`
	Sentiment       string `json:"sentiment"`
	ConvictionScore *int   `json:"conviction_score"`
	Timeframe       string `json:"timeframe"`
	Context         string `json:"context"`
}

// Extraction is the structured result for one source item.
type Extraction struct {
	Tickers             []TickerCall `json:"tickers"`
	IsContrarian        bool         `json:"is_contrarian"`
	IsDisruptionFocused bool         `json:"is_disruption_focused"`
}

// Client is the extraction collaborator boundary. Implementations own their
// timeout and retry behavior; the pipeline treats a failure as "leave the
// source item unprocessed and retry next cycle".
type Client interface {
	Extract(ctx context.Context, text, sourceName, title string) (*Extraction, error)
}

// Config carries the knobs the clients need.
type Config struct {
	APIKey       string
	Model        string
	RateLimitRPS int
}

const apiKeyMock = "mock"

// New selects the real client, or a deterministic mock when no key is
// configured so local runs work offline.
func New(cfg Config, logger *zerolog.Logger) Client {
	if cfg.APIKey == "" || cfg.APIKey == apiKeyMock {
		return &mockClient{}
	}

	return NewOpenAI(cfg, logger)
}

type mockClient struct{}

// Extract scans for crude $TICKER patterns so the rest of the pipeline can
// be exercised without an API key.
func (c *mockClient) Extract(_ context.Context, text, _, _ string) (*Extraction, error) {
	extraction := &Extraction{}
	seen := make(map[string]struct{})

	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "$") {
			continue
		}

		ticker := strings.ToUpper(strings.Trim(word[1:], ".,;:!?()"))
		if len(ticker) < 2 || len(ticker) > 5 {
			continue
		}

		if _, dup := seen[ticker]; dup {
			continue
		}

		seen[ticker] = struct{}{}

		conviction := DefaultConviction
		extraction.Tickers = append(extraction.Tickers, TickerCall{
			Ticker:          ticker,
			Sentiment:       "neutral",
			ConvictionScore: &conviction,
			Timeframe:       "unspecified",
		})
	}

	return extraction, nil
}
