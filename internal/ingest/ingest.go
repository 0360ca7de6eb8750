// Package ingest turns external content (podcast RSS feeds, newsletter HTML
// drops) into unprocessed source items. Every candidate passes through the
// dedup resolver before it is stored; duplicates are persisted with a
// duplicate_skipped status so skips stay auditable.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/platform/observability"
	"github.com/quietrade/ticker-digest/internal/process/dedup"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

// Repository is the storage surface the ingestor needs.
type Repository interface {
	SaveSourceItem(ctx context.Context, item *db.SourceItem) error
}

var _ Repository = (*db.DB)(nil)

// resolver decides whether a candidate duplicates a stored item.
type resolver interface {
	Resolve(ctx context.Context, item *domain.SourceItem) (dedup.Decision, error)
}

// Ingestor persists candidates after dedup resolution.
type Ingestor struct {
	database Repository
	resolver resolver
	logger   *zerolog.Logger
}

func NewIngestor(database Repository, res resolver, logger *zerolog.Logger) *Ingestor {
	return &Ingestor{database: database, resolver: res, logger: logger}
}

// Accept resolves and stores one candidate. It returns true when the item
// was stored as new work for the pipeline, false when it was recorded as a
// duplicate skip.
func (in *Ingestor) Accept(ctx context.Context, item *domain.SourceItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	item.TitlePrefix = dedup.NormalizePrefix(item.Title)
	item.Status = domain.StatusUnprocessed

	decision, err := in.resolver.Resolve(ctx, item)
	if err != nil {
		return false, fmt.Errorf("resolve candidate: %w", err)
	}

	rule := "none"

	if decision.Duplicate {
		item.Status = domain.StatusDuplicateSkipped
		item.DuplicateOf = decision.DuplicateOf
		item.DuplicateRule = string(decision.Rule)
		rule = string(decision.Rule)
	}

	if err := in.database.SaveSourceItem(ctx, item); err != nil {
		return false, fmt.Errorf("store candidate: %w", err)
	}

	observability.DedupDecisions.WithLabelValues(rule).Inc()

	if decision.Duplicate {
		return false, nil
	}

	observability.SourceItemsIngested.WithLabelValues(string(item.SourceType)).Inc()
	in.logger.Debug().
		Str("source", item.SourceName).
		Str("title", item.Title).
		Str("type", string(item.SourceType)).
		Msg("accepted source item")

	return true, nil
}
