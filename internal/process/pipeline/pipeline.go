// Package pipeline drains the unprocessed source-item backlog: each item's
// text goes to the extraction collaborator, the validated ticker calls
// become mentions with their weight computed at write time, and the item is
// marked processed in the same transaction that stores its mentions.
//
// A failed extraction leaves the item unprocessed so the next batch retries
// it; nothing is marked processed until its mentions are durably stored.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/core/scoring"
	"github.com/quietrade/ticker-digest/internal/llm"
	"github.com/quietrade/ticker-digest/internal/platform/observability"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

const defaultBatchSize = 20

// Repository is the storage surface the pipeline needs.
type Repository interface {
	GetUnprocessedSourceItems(ctx context.Context, limit int) ([]db.SourceItem, error)
	CountUnprocessedSourceItems(ctx context.Context) (int, error)
	ReplaceMentions(ctx context.Context, sourceItemID string, mentions []db.Mention) error
	GetKeywordTerms(ctx context.Context) ([]domain.KeywordTerm, error)
}

var _ Repository = (*db.DB)(nil)

type Pipeline struct {
	database  Repository
	extractor llm.Client
	batchSize int
	logger    *zerolog.Logger
}

func New(database Repository, extractor llm.Client, batchSize int, logger *zerolog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Pipeline{
		database:  database,
		extractor: extractor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ProcessBatch extracts mentions for up to batchSize unprocessed items and
// returns how many items were completed. Per-item failures are logged and
// skipped; the batch keeps going.
func (p *Pipeline) ProcessBatch(ctx context.Context) (int, error) {
	terms, err := p.database.GetKeywordTerms(ctx)
	if err != nil {
		return 0, fmt.Errorf("load keyword terms: %w", err)
	}

	keywords := scoring.NewKeywordSet(terms)

	items, err := p.database.GetUnprocessedSourceItems(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load unprocessed items: %w", err)
	}

	processed := 0

	for i := range items {
		item := &items[i]

		if err := p.processItem(ctx, item, keywords); err != nil {
			observability.PipelineProcessed.WithLabelValues("failed").Inc()
			p.logger.Error().Err(err).
				Str("source", item.SourceName).
				Str("title", item.Title).
				Msg("source item left unprocessed")

			continue
		}

		observability.PipelineProcessed.WithLabelValues("success").Inc()

		processed++
	}

	if backlog, err := p.database.CountUnprocessedSourceItems(ctx); err == nil {
		observability.PipelineBacklog.Set(float64(backlog))
	}

	return processed, nil
}

func (p *Pipeline) processItem(ctx context.Context, item *db.SourceItem, keywords scoring.KeywordSet) error {
	extraction, err := p.extractor.Extract(ctx, item.Body, item.SourceName, item.Title)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	report := llm.Validate(extraction)
	if report.Clamped > 0 {
		observability.ConvictionClamps.Add(float64(report.Clamped))
	}

	if report.Dropped > 0 {
		observability.ExtractionDropped.Add(float64(report.Dropped))
	}

	mentions := buildMentions(item, extraction, keywords)

	// An empty mention set still marks the item processed: a transcript with
	// no investable tickers is finished work, not a failure.
	if err := p.database.ReplaceMentions(ctx, item.ID, mentions); err != nil {
		return fmt.Errorf("store mentions: %w", err)
	}

	for range mentions {
		observability.MentionsExtracted.WithLabelValues(string(item.SourceType)).Inc()
	}

	p.logger.Info().
		Str("source", item.SourceName).
		Str("title", item.Title).
		Int("mentions", len(mentions)).
		Int("dropped", report.Dropped).
		Int("clamped", report.Clamped).
		Msg("source item processed")

	return nil
}

// buildMentions converts validated ticker calls into mentions. Disruption
// keyword hits are counted once against the item body and shared by every
// mention of the item; the contrarian flag is the extractor's judgement or a
// contrarian-keyword hit, whichever fires.
//
// Mentions are stamped with the processing time, not the item's publish
// date: the daily aggregation windows over when evidence entered the
// system, so a drained backlog of old episodes still lands in today's
// cycle instead of falling into windows that already closed.
func buildMentions(item *db.SourceItem, extraction *llm.Extraction, keywords scoring.KeywordSet) []db.Mention {
	disruptionHits := keywords.Hits(domain.KeywordDisruption, item.Body)
	contrarian := extraction.IsContrarian || keywords.HasAny(domain.KeywordContrarian, item.Body)
	inferredConviction := scoring.InferConviction(keywords, item.Body)
	mentionedAt := time.Now().UTC()

	mentions := make([]db.Mention, 0, len(extraction.Tickers))

	for _, call := range extraction.Tickers {
		m := db.Mention{
			SourceItemID:        item.ID,
			Ticker:              call.Ticker,
			SourceType:          item.SourceType,
			SourceName:          item.SourceName,
			ItemTitle:           item.Title,
			Context:             call.Context,
			ConvictionScore:     resolveConviction(call.ConvictionScore, inferredConviction),
			Sentiment:           domain.Sentiment(call.Sentiment),
			Timeframe:           domain.Timeframe(call.Timeframe),
			IsContrarian:        contrarian,
			IsDisruptionFocused: extraction.IsDisruptionFocused,
			DisruptionHits:      disruptionHits,
			MentionedAt:         mentionedAt,
		}
		m.WeightedScore = scoring.Weight(m)

		mentions = append(mentions, m)
	}

	return mentions
}

// resolveConviction picks the conviction for a mention: the extractor's
// explicit value wins, then conviction language read from the source text,
// then the neutral default.
func resolveConviction(explicit *int, inferred int) int {
	if explicit != nil {
		return *explicit
	}

	if inferred > 0 {
		return inferred
	}

	return llm.DefaultConviction
}
