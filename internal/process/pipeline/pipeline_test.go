package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/core/scoring"
	"github.com/quietrade/ticker-digest/internal/llm"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

type fakeRepo struct {
	items    []db.SourceItem
	terms    []domain.KeywordTerm
	stored   map[string][]db.Mention
	storeErr error
}

func (f *fakeRepo) GetUnprocessedSourceItems(_ context.Context, limit int) ([]db.SourceItem, error) {
	if len(f.items) > limit {
		return f.items[:limit], nil
	}

	return f.items, nil
}

func (f *fakeRepo) CountUnprocessedSourceItems(_ context.Context) (int, error) {
	return len(f.items) - len(f.stored), nil
}

func (f *fakeRepo) ReplaceMentions(_ context.Context, sourceItemID string, mentions []db.Mention) error {
	if f.storeErr != nil {
		return f.storeErr
	}

	if f.stored == nil {
		f.stored = make(map[string][]db.Mention)
	}

	f.stored[sourceItemID] = mentions

	return nil
}

func (f *fakeRepo) GetKeywordTerms(_ context.Context) ([]domain.KeywordTerm, error) {
	return f.terms, nil
}

type fakeExtractor struct {
	extractions map[string]*llm.Extraction
	err         error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _, title string) (*llm.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}

	if ex, ok := f.extractions[title]; ok {
		return ex, nil
	}

	return &llm.Extraction{}, nil
}

func intPtr(v int) *int { return &v }

func podcastItem(id, title, body string) db.SourceItem {
	return db.SourceItem{
		ID:          id,
		SourceType:  domain.SourcePodcast,
		SourceName:  "All-In",
		Title:       title,
		Body:        body,
		PublishedAt: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
		Status:      domain.StatusUnprocessed,
	}
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("stores weighted mentions and counts disruption hits", func(t *testing.T) {
		repo := &fakeRepo{
			items: []db.SourceItem{podcastItem("item-1", "Ep 200", "a game changer and a paradigm shift for $NVDA")},
			terms: []domain.KeywordTerm{
				{Category: domain.KeywordDisruption, Term: "game changer", Weight: 1},
				{Category: domain.KeywordDisruption, Term: "paradigm shift", Weight: 1},
			},
		}
		extractor := &fakeExtractor{extractions: map[string]*llm.Extraction{
			"Ep 200": {Tickers: []llm.TickerCall{
				{Ticker: "NVDA", Sentiment: "bullish", ConvictionScore: intPtr(80), Timeframe: "long_term"},
			}},
		}}

		processed, err := New(repo, extractor, 10, &logger).ProcessBatch(ctx)
		if err != nil {
			t.Fatal(err)
		}

		if processed != 1 {
			t.Fatalf("processed = %d, want 1", processed)
		}

		mentions := repo.stored["item-1"]
		if len(mentions) != 1 {
			t.Fatalf("stored %d mentions, want 1", len(mentions))
		}

		m := mentions[0]
		if m.DisruptionHits != 2 {
			t.Errorf("disruption hits = %d, want 2", m.DisruptionHits)
		}

		// podcast: 20 x 2.0 x (1 + 80/100)
		if want := 72.0; m.WeightedScore != want {
			t.Errorf("weighted score = %v, want %v", m.WeightedScore, want)
		}
	})

	t.Run("mentions are stamped at processing time", func(t *testing.T) {
		// A backlog item published weeks ago must land in the current
		// aggregation window, not one that already closed.
		repo := &fakeRepo{
			items: []db.SourceItem{podcastItem("item-1", "Ep 200", "$NVDA")},
		}
		repo.items[0].PublishedAt = time.Now().UTC().AddDate(0, 0, -40)

		extractor := &fakeExtractor{extractions: map[string]*llm.Extraction{
			"Ep 200": {Tickers: []llm.TickerCall{
				{Ticker: "NVDA", Sentiment: "bullish", ConvictionScore: intPtr(80), Timeframe: "long_term"},
			}},
		}}

		before := time.Now().UTC()

		if _, err := New(repo, extractor, 10, &logger).ProcessBatch(ctx); err != nil {
			t.Fatal(err)
		}

		after := time.Now().UTC()

		m := repo.stored["item-1"][0]
		if m.MentionedAt.Before(before) || m.MentionedAt.After(after) {
			t.Errorf("mentioned_at = %v, want processing time between %v and %v", m.MentionedAt, before, after)
		}

		if m.MentionedAt.Equal(repo.items[0].PublishedAt) {
			t.Error("mentioned_at carries the stale publish date")
		}
	})

	t.Run("extraction failure leaves item unprocessed", func(t *testing.T) {
		repo := &fakeRepo{items: []db.SourceItem{podcastItem("item-1", "Ep 201", "text")}}
		extractor := &fakeExtractor{err: errors.New("rate limited")}

		processed, err := New(repo, extractor, 10, &logger).ProcessBatch(ctx)
		if err != nil {
			t.Fatal(err)
		}

		if processed != 0 {
			t.Errorf("processed = %d, want 0", processed)
		}

		if len(repo.stored) != 0 {
			t.Errorf("stored mentions for a failed item")
		}
	})

	t.Run("no tickers still completes the item", func(t *testing.T) {
		repo := &fakeRepo{items: []db.SourceItem{podcastItem("item-1", "Ep 202", "no investable content")}}
		extractor := &fakeExtractor{}

		processed, err := New(repo, extractor, 10, &logger).ProcessBatch(ctx)
		if err != nil {
			t.Fatal(err)
		}

		if processed != 1 {
			t.Errorf("processed = %d, want 1", processed)
		}

		if got, ok := repo.stored["item-1"]; !ok || len(got) != 0 {
			t.Errorf("stored = %v, want empty mention set recorded", got)
		}
	})

	t.Run("one failing item does not block the batch", func(t *testing.T) {
		repo := &fakeRepo{
			items: []db.SourceItem{
				podcastItem("item-1", "Ep 203", "$NVDA"),
				podcastItem("item-2", "Ep 204", "$TSLA"),
			},
		}
		extractor := &fakeExtractor{extractions: map[string]*llm.Extraction{
			"Ep 203": {Tickers: []llm.TickerCall{
				{Ticker: "??", Sentiment: "bullish", ConvictionScore: intPtr(80), Timeframe: "long_term"},
			}},
			"Ep 204": {Tickers: []llm.TickerCall{
				{Ticker: "TSLA", Sentiment: "bearish", ConvictionScore: intPtr(-20), Timeframe: "short_term"},
			}},
		}}

		processed, err := New(repo, extractor, 10, &logger).ProcessBatch(ctx)
		if err != nil {
			t.Fatal(err)
		}

		// The invalid ticker is dropped by validation, not a failure: both
		// items complete, one with an empty mention set.
		if processed != 2 {
			t.Errorf("processed = %d, want 2", processed)
		}

		if len(repo.stored["item-1"]) != 0 {
			t.Errorf("invalid ticker survived validation")
		}

		if len(repo.stored["item-2"]) != 1 {
			t.Errorf("valid item lost its mention")
		}
	})
}

func TestBuildMentionsConvictionResolution(t *testing.T) {
	terms := []domain.KeywordTerm{
		{Category: domain.KeywordConviction, Term: "high conviction", Weight: 1},
		{Category: domain.KeywordConviction, Term: "top pick", Weight: 1},
	}

	call := func(conviction *int) *llm.Extraction {
		return &llm.Extraction{Tickers: []llm.TickerCall{
			{Ticker: "NVDA", Sentiment: "bullish", ConvictionScore: conviction, Timeframe: "long_term"},
		}}
	}

	t.Run("explicit conviction wins over source language", func(t *testing.T) {
		item := podcastItem("item-1", "Ep 210", "this is a high conviction top pick $NVDA")

		mentions := buildMentions(&item, call(intPtr(15)), scoring.NewKeywordSet(terms))
		if mentions[0].ConvictionScore != 15 {
			t.Errorf("conviction = %d, want the extractor's 15", mentions[0].ConvictionScore)
		}
	})

	t.Run("missing conviction read from conviction language", func(t *testing.T) {
		item := podcastItem("item-1", "Ep 211", "this is a high conviction top pick $NVDA")

		mentions := buildMentions(&item, call(nil), scoring.NewKeywordSet(terms))
		if mentions[0].ConvictionScore != 50 {
			t.Errorf("conviction = %d, want 50 from two conviction phrases", mentions[0].ConvictionScore)
		}
	})

	t.Run("missing conviction and silent text falls back to default", func(t *testing.T) {
		item := podcastItem("item-1", "Ep 212", "a quiet mention of $NVDA")

		mentions := buildMentions(&item, call(nil), scoring.NewKeywordSet(terms))
		if mentions[0].ConvictionScore != llm.DefaultConviction {
			t.Errorf("conviction = %d, want default %d", mentions[0].ConvictionScore, llm.DefaultConviction)
		}
	})
}

func TestBuildMentionsContrarianKeywordFallback(t *testing.T) {
	item := podcastItem("item-1", "Ep 205", "everyone hates this unloved sector")
	keywords := domain.KeywordTerm{Category: domain.KeywordContrarian, Term: "unloved", Weight: 1}

	extraction := &llm.Extraction{Tickers: []llm.TickerCall{
		{Ticker: "INTC", Sentiment: "bullish", ConvictionScore: intPtr(60), Timeframe: "long_term"},
	}}

	mentions := buildMentions(&item, extraction, scoring.NewKeywordSet([]domain.KeywordTerm{keywords}))
	if len(mentions) != 1 || !mentions[0].IsContrarian {
		t.Errorf("mentions = %+v, want contrarian flag from keyword hit", mentions)
	}
}
