package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// Mention is an alias for the domain type.
type Mention = domain.Mention

const mentionColumns = `id, source_item_id, ticker, source_type, source_name, item_title,
	context, conviction_score, sentiment, timeframe, is_contrarian,
	is_disruption_focused, disruption_hits, weighted_score, mentioned_at`

// ReplaceMentions atomically swaps a source item's mention set and marks the
// item processed. Reprocessing must purge prior mentions first or the same
// evidence would count twice; doing both in one transaction means a reader
// never observes a partial mention set.
func (db *DB) ReplaceMentions(ctx context.Context, sourceItemID string, mentions []Mention) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace mentions: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`DELETE FROM ticker_mentions WHERE source_item_id = $1`, toUUID(sourceItemID)); err != nil {
		return fmt.Errorf("purge mentions: %w", err)
	}

	for i := range mentions {
		m := &mentions[i]

		if _, err := tx.Exec(ctx, `
			INSERT INTO ticker_mentions
				(source_item_id, ticker, source_type, source_name, item_title, context,
				 conviction_score, sentiment, timeframe, is_contrarian,
				 is_disruption_focused, disruption_hits, weighted_score, mentioned_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			toUUID(sourceItemID), m.Ticker, string(m.SourceType), SanitizeUTF8(m.SourceName),
			SanitizeUTF8(m.ItemTitle), SanitizeUTF8(m.Context), m.ConvictionScore,
			string(m.Sentiment), string(m.Timeframe), m.IsContrarian,
			m.IsDisruptionFocused, m.DisruptionHits, m.WeightedScore,
			toTimestamptz(m.MentionedAt),
		); err != nil {
			return fmt.Errorf("insert mention for %s: %w", m.Ticker, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE source_items SET status = 'processed', processed_at = now() WHERE id = $1`,
		toUUID(sourceItemID)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace mentions: %w", err)
	}

	return nil
}

// GetTickersMentionedOn returns the distinct tickers with at least one
// mention on the given date.
func (db *DB) GetTickersMentionedOn(ctx context.Context, date time.Time) ([]string, error) {
	start, end := windowForDate(date)

	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT ticker FROM ticker_mentions
		WHERE mentioned_at >= $1 AND mentioned_at < $2
		ORDER BY ticker
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get tickers mentioned on %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var tickers []string

	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}

		tickers = append(tickers, ticker)
	}

	return tickers, rows.Err()
}

// GetTickersForSourceItem returns the distinct tickers extracted from one
// source item, used when the item is promoted into an insight.
func (db *DB) GetTickersForSourceItem(ctx context.Context, sourceItemID string) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT ticker FROM ticker_mentions
		WHERE source_item_id = $1
		ORDER BY ticker
	`, toUUID(sourceItemID))
	if err != nil {
		return nil, fmt.Errorf("get tickers for source item: %w", err)
	}
	defer rows.Close()

	var tickers []string

	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}

		tickers = append(tickers, ticker)
	}

	return tickers, rows.Err()
}

// GetMentionsForTicker returns a ticker's mentions within a date window.
func (db *DB) GetMentionsForTicker(ctx context.Context, ticker string, date time.Time) ([]Mention, error) {
	start, end := windowForDate(date)

	rows, err := db.Pool.Query(ctx, `
		SELECT `+mentionColumns+`
		FROM ticker_mentions
		WHERE ticker = $1 AND mentioned_at >= $2 AND mentioned_at < $3
	`, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("get mentions for %s: %w", ticker, err)
	}
	defer rows.Close()

	var mentions []Mention

	for rows.Next() {
		var (
			m          Mention
			itemID     pgtype.UUID
			sourceType string
			sentiment  string
			timeframe  string
			at         pgtype.Timestamptz
		)

		if err := rows.Scan(&m.ID, &itemID, &m.Ticker, &sourceType, &m.SourceName,
			&m.ItemTitle, &m.Context, &m.ConvictionScore, &sentiment, &timeframe,
			&m.IsContrarian, &m.IsDisruptionFocused, &m.DisruptionHits,
			&m.WeightedScore, &at); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}

		m.SourceItemID = fromUUID(itemID)
		m.SourceType = domain.SourceType(sourceType)
		m.Sentiment = domain.Sentiment(sentiment)
		m.Timeframe = domain.Timeframe(timeframe)
		m.MentionedAt = fromTimestamptz(at)

		mentions = append(mentions, m)
	}

	return mentions, rows.Err()
}

// CountTodayMentionsByType returns today's mention counts keyed by source type.
func (db *DB) CountTodayMentionsByType(ctx context.Context) (map[string]int, error) {
	start, end := windowForDate(time.Now().UTC())

	rows, err := db.Pool.Query(ctx, `
		SELECT source_type, COUNT(*)
		FROM ticker_mentions
		WHERE mentioned_at >= $1 AND mentioned_at < $2
		GROUP BY source_type
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("count today mentions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			sourceType string
			count      int
		)

		if err := rows.Scan(&sourceType, &count); err != nil {
			return nil, fmt.Errorf("scan mention count: %w", err)
		}

		counts[sourceType] = count
	}

	return counts, rows.Err()
}
