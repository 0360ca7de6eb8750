package lifecycle

import (
	"strings"
	"testing"
	"time"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

func TestExtractTermCandidates(t *testing.T) {
	find := func(candidates []*db.ContentItem, title string) *db.ContentItem {
		for _, c := range candidates {
			if c.Title == title {
				return c
			}
		}

		return nil
	}

	t.Run("quoted term with definition", func(t *testing.T) {
		body := `The hosts kept coming back to "sovereign compute": the idea that
nations will treat GPU capacity as strategic infrastructure.`

		candidates := ExtractTermCandidates(body, "All-In")

		got := find(candidates, "sovereign compute")
		if got == nil {
			t.Fatalf("candidates = %v, want sovereign compute", candidates)
		}

		if got.RelevanceScore != 50 {
			t.Errorf("relevance = %d, want 50 for a defined term", got.RelevanceScore)
		}

		if got.Body == "" || !strings.Contains(got.Body, "strategic infrastructure") {
			t.Errorf("body = %q, want the captured definition", got.Body)
		}

		if got.SourceName != "All-In" || got.MentionCount != 1 || got.SourceCount != 1 {
			t.Errorf("candidate = %+v, want single-source provenance", got)
		}

		if got.ContentType != domain.ContentEmergentTerm {
			t.Errorf("type = %q", got.ContentType)
		}
	})

	t.Run("repeated capitalized phrase", func(t *testing.T) {
		body := `Everyone is building toward Agentic Commerce now. The bet is that
Agentic Commerce replaces checkout flows entirely.`

		candidates := ExtractTermCandidates(body, "The Diff")

		got := find(candidates, "Agentic Commerce")
		if got == nil {
			t.Fatalf("candidates = %v, want Agentic Commerce", candidates)
		}

		if got.RelevanceScore != 30 {
			t.Errorf("relevance = %d, want 30 for an undefined term", got.RelevanceScore)
		}
	})

	t.Run("single occurrence of a phrase is noise", func(t *testing.T) {
		body := `A passing reference to Quantum Advantage proves nothing.`

		if candidates := ExtractTermCandidates(body, "x"); len(candidates) != 0 {
			t.Errorf("candidates = %v, want none", candidates)
		}
	})

	t.Run("common sentence openers are skipped", func(t *testing.T) {
		body := `The Market Wants more. The Market Wants it all.`

		if got := find(ExtractTermCandidates(body, "x"), "The Market Wants"); got != nil {
			t.Errorf("candidate = %+v, want phrase starting with The skipped", got)
		}
	})

	t.Run("invalid terms are filtered", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"too short", `They said "RAG": retrieval augmented generation for the masses.`},
			{"contains digits", `They said "GPT5 wrappers": thin products on someone else's model.`},
			{"all uppercase", `They said "CAPEX CYCLE": spending begets more spending soon.`},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if candidates := ExtractTermCandidates(tc.body, "x"); len(candidates) != 0 {
					t.Errorf("candidates = %v, want none", candidates)
				}
			})
		}
	})

	t.Run("duplicate term within one body counts once", func(t *testing.T) {
		body := `First "liquidity mirage": prices that vanish when you sell.
Later again "liquidity mirage": the same illusion in options.`

		candidates := ExtractTermCandidates(body, "x")
		if len(candidates) != 1 {
			t.Errorf("candidates = %d, want 1", len(candidates))
		}
	})
}

func TestNewInsightFromSource(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	item := func(published time.Time) *db.SourceItem {
		return &db.SourceItem{
			ID:          "11111111-1111-1111-1111-111111111111",
			SourceType:  domain.SourcePodcast,
			SourceName:  "All-In",
			Title:       "Episode 200: The AI Capex Supercycle",
			Body:        "transcript body",
			PublishedAt: published,
		}
	}

	t.Run("carries source identity and tickers", func(t *testing.T) {
		got := NewInsightFromSource(item(now.AddDate(0, 0, -3)), []string{"NVDA", "TSM"}, now)

		if got.ContentType != domain.ContentInsight || got.Title != "Episode 200: The AI Capex Supercycle" {
			t.Errorf("insight = %+v", got)
		}

		if got.SourceName != "All-In" || len(got.Tickers) != 2 {
			t.Errorf("insight = %+v, want source name and tickers carried", got)
		}

		if !got.SourceDate.Equal(now.AddDate(0, 0, -3)) {
			t.Errorf("source date = %v, want the publish date", got.SourceDate)
		}
	})

	t.Run("stale publish dates are re-stamped", func(t *testing.T) {
		got := NewInsightFromSource(item(now.AddDate(-3, 0, 0)), nil, now)

		if !got.SourceDate.Equal(now) {
			t.Errorf("source date = %v, want promotion time for a 3-year-old item", got.SourceDate)
		}
	})

	t.Run("missing publish date falls back to promotion time", func(t *testing.T) {
		got := NewInsightFromSource(item(time.Time{}), nil, now)

		if !got.SourceDate.Equal(now) {
			t.Errorf("source date = %v, want promotion time", got.SourceDate)
		}
	})

	t.Run("long bodies are excerpted", func(t *testing.T) {
		long := item(now)
		long.Body = strings.Repeat("x", 5000)

		got := NewInsightFromSource(long, nil, now)
		if len(got.Body) != insightBodyLimit {
			t.Errorf("body length = %d, want %d", len(got.Body), insightBodyLimit)
		}
	})
}
