package lifecycle

import (
	"time"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

const (
	// insightBodyLimit caps the excerpt carried onto the main page.
	insightBodyLimit = 2000

	// insightFreshnessWindow guards against feeds that republish years-old
	// material with the original date: anything older is stamped with the
	// promotion time so it still surfaces at the top of the page.
	insightFreshnessWindow = 730 * 24 * time.Hour
)

// NewInsightFromSource builds the insight promoted from a processed source
// item. The item's title is the uniqueness key, so promoting the same item
// twice is a no-op at the Promote layer.
func NewInsightFromSource(item *db.SourceItem, tickers []string, now time.Time) *db.ContentItem {
	sourceDate := item.PublishedAt
	if sourceDate.IsZero() || now.Sub(sourceDate) > insightFreshnessWindow {
		sourceDate = now
	}

	return &db.ContentItem{
		ContentType: domain.ContentInsight,
		Title:       item.Title,
		Body:        excerpt(item.Body, insightBodyLimit),
		SourceName:  item.SourceName,
		SourceDate:  sourceDate,
		Tickers:     tickers,
	}
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}
