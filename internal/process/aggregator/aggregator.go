// Package aggregator recomputes one date's ranked ticker snapshot from its
// mentions. A cycle is the only writer of daily_scores and runs under an
// advisory lock, so two overlapping cycles can never interleave writes.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/scoring"
	"github.com/quietrade/ticker-digest/internal/platform/observability"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

// cycleLockID keys the advisory lock shared by all aggregation cycles.
const cycleLockID int64 = 0x7469636b

// ErrCycleInProgress is returned when another cycle holds the lock.
var ErrCycleInProgress = errors.New("aggregation cycle already in progress")

// Repository is the storage surface a cycle needs.
type Repository interface {
	TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, lockID int64) error
	GetTickersMentionedOn(ctx context.Context, date time.Time) ([]string, error)
	GetMentionsForTicker(ctx context.Context, ticker string, date time.Time) ([]db.Mention, error)
	ReplaceDailyScores(ctx context.Context, date time.Time, scores []db.DailyScore) error
}

var _ Repository = (*db.DB)(nil)

type Aggregator struct {
	database Repository
	logger   *zerolog.Logger
}

func New(database Repository, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{database: database, logger: logger}
}

// RunCycle recomputes and replaces the date's snapshot, returning the number
// of tickers scored. Zero tells the caller to skip downstream side effects
// (exports, notifications); the stored snapshot is still replaced so stale
// rows from a prior run do not survive a day that went quiet.
//
// A per-ticker read failure is logged and the ticker skipped; the cycle
// completes with the rest. Scoring itself is pure and cannot fail.
func (a *Aggregator) RunCycle(ctx context.Context, date time.Time) (int, error) {
	acquired, err := a.database.TryAcquireAdvisoryLock(ctx, cycleLockID)
	if err != nil {
		return 0, fmt.Errorf("acquire cycle lock: %w", err)
	}

	if !acquired {
		observability.AggregationCycles.WithLabelValues("locked").Inc()
		return 0, ErrCycleInProgress
	}

	defer func() {
		if err := a.database.ReleaseAdvisoryLock(ctx, cycleLockID); err != nil {
			a.logger.Error().Err(err).Msg("release cycle lock")
		}
	}()

	started := time.Now()

	count, err := a.runLocked(ctx, date)
	if err != nil {
		observability.AggregationCycles.WithLabelValues("failed").Inc()
		return 0, err
	}

	observability.AggregationCycles.WithLabelValues("success").Inc()
	observability.TickersScored.Set(float64(count))
	observability.AggregationDurationSeconds.Observe(time.Since(started).Seconds())

	a.logger.Info().
		Str("date", date.Format("2006-01-02")).
		Int("tickers", count).
		Dur("took", time.Since(started)).
		Msg("aggregation cycle complete")

	return count, nil
}

func (a *Aggregator) runLocked(ctx context.Context, date time.Time) (int, error) {
	tickers, err := a.database.GetTickersMentionedOn(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("enumerate tickers: %w", err)
	}

	scores := make([]db.DailyScore, 0, len(tickers))

	for _, ticker := range tickers {
		mentions, err := a.database.GetMentionsForTicker(ctx, ticker, date)
		if err != nil {
			a.logger.Error().Err(err).Str("ticker", ticker).Msg("skipping ticker this cycle")
			continue
		}

		score, ok := scoring.Aggregate(ticker, mentions)
		if !ok {
			continue
		}

		score.Date = date
		scores = append(scores, score)
	}

	scoring.SortScores(scores)

	now := time.Now().UTC()
	for i := range scores {
		scores[i].Rank = i + 1
		scores[i].ComputedAt = now
	}

	if err := a.database.ReplaceDailyScores(ctx, date, scores); err != nil {
		return 0, fmt.Errorf("replace snapshot: %w", err)
	}

	return len(scores), nil
}
