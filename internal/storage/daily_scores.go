package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// DailyScore is an alias for the domain type.
type DailyScore = domain.DailyScore

// ErrRankingInconsistent indicates the snapshot about to be committed
// violates the ranking invariants. This aborts the cycle: downstream
// consumers trust ranks absolutely, so a torn ranking must never persist.
var ErrRankingInconsistent = errors.New("daily score ranking inconsistent")

// ReplaceDailyScores overwrites the full snapshot for a date in a single
// transaction. Partial writes never become visible: the prior snapshot
// stays readable until commit. Ranks must arrive as a strict 1..n sequence.
func (db *DB) ReplaceDailyScores(ctx context.Context, date time.Time, scores []DailyScore) error {
	if err := validateRanks(scores); err != nil {
		return err
	}

	day, _ := windowForDate(date)

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace daily scores: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM daily_scores WHERE score_date = $1`, toDate(day)); err != nil {
		return fmt.Errorf("clear daily scores: %w", err)
	}

	for i := range scores {
		s := &scores[i]

		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_scores
				(ticker, score_date, total_score, podcast_mentions, newsletter_mentions,
				 disruption_signals, unique_sources, conviction_level, contrarian_signal,
				 timeframe, rank)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			s.Ticker, toDate(day), s.TotalScore, s.PodcastMentions, s.NewsletterMentions,
			s.DisruptionSignals, s.UniqueSources, s.ConvictionLevel, s.ContrarianSignal,
			string(s.Timeframe), s.Rank,
		); err != nil {
			return fmt.Errorf("insert daily score for %s: %w", s.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace daily scores: %w", err)
	}

	return nil
}

// validateRanks guards the snapshot invariant before any row is written:
// unique tickers and a contiguous 1-based rank sequence.
func validateRanks(scores []DailyScore) error {
	seenTickers := make(map[string]struct{}, len(scores))
	seenRanks := make(map[int]struct{}, len(scores))

	for i := range scores {
		s := &scores[i]

		if _, dup := seenTickers[s.Ticker]; dup {
			return fmt.Errorf("%w: duplicate ticker %s", ErrRankingInconsistent, s.Ticker)
		}

		if s.Rank < 1 || s.Rank > len(scores) {
			return fmt.Errorf("%w: rank %d out of range for %s", ErrRankingInconsistent, s.Rank, s.Ticker)
		}

		if _, dup := seenRanks[s.Rank]; dup {
			return fmt.Errorf("%w: duplicate rank %d", ErrRankingInconsistent, s.Rank)
		}

		seenTickers[s.Ticker] = struct{}{}
		seenRanks[s.Rank] = struct{}{}
	}

	return nil
}

const dailyScoreColumns = `ticker, score_date, total_score, podcast_mentions, newsletter_mentions,
	disruption_signals, unique_sources, conviction_level, contrarian_signal,
	timeframe, rank, computed_at`

// GetDailyScores returns the snapshot for a date ordered by rank. A zero
// date selects the most recent date with scores.
func (db *DB) GetDailyScores(ctx context.Context, date time.Time) ([]DailyScore, error) {
	if date.IsZero() {
		var latest pgtype.Date
		if err := db.Pool.QueryRow(ctx, `SELECT MAX(score_date) FROM daily_scores`).Scan(&latest); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("get latest score date: %w", err)
		}

		if !latest.Valid {
			return nil, nil
		}

		date = latest.Time
	}

	day, _ := windowForDate(date)

	rows, err := db.Pool.Query(ctx, `
		SELECT `+dailyScoreColumns+`
		FROM daily_scores
		WHERE score_date = $1
		ORDER BY rank
	`, toDate(day))
	if err != nil {
		return nil, fmt.Errorf("get daily scores: %w", err)
	}
	defer rows.Close()

	var scores []DailyScore

	for rows.Next() {
		var (
			s          DailyScore
			scoreDate  pgtype.Date
			timeframe  string
			computedAt pgtype.Timestamptz
		)

		if err := rows.Scan(&s.Ticker, &scoreDate, &s.TotalScore, &s.PodcastMentions,
			&s.NewsletterMentions, &s.DisruptionSignals, &s.UniqueSources,
			&s.ConvictionLevel, &s.ContrarianSignal, &timeframe, &s.Rank, &computedAt); err != nil {
			return nil, fmt.Errorf("scan daily score: %w", err)
		}

		s.Date = fromDate(scoreDate)
		s.Timeframe = domain.Timeframe(timeframe)
		s.ComputedAt = fromTimestamptz(computedAt)

		scores = append(scores, s)
	}

	return scores, rows.Err()
}
