package db

import (
	"context"
	"fmt"
)

// Stats summarizes table sizes for the health endpoint and gauges.
type Stats struct {
	SourceItems  int
	Mentions     int
	DailyScores  int
	ContentItems int
}

// GetStats returns row counts per table.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats

	row := db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM source_items),
			(SELECT COUNT(*) FROM ticker_mentions),
			(SELECT COUNT(*) FROM daily_scores),
			(SELECT COUNT(*) FROM content_items)
	`)

	if err := row.Scan(&stats.SourceItems, &stats.Mentions, &stats.DailyScores, &stats.ContentItems); err != nil {
		return Stats{}, fmt.Errorf("get stats: %w", err)
	}

	return stats, nil
}
