package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

const (
	feedFetchTimeout = 15 * time.Second
	maxFeedEntries   = 50
)

var errFeedHTTPStatus = errors.New("feed HTTP error")

// FeedSource is one configured podcast feed.
type FeedSource struct {
	Name string
	URL  string
}

// FeedFetcher fetches and parses podcast RSS/Atom feeds into source-item
// candidates. Episode show notes are the extraction body; the feed guid is
// the stable identity the dedup resolver prefers.
type FeedFetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	logger     *zerolog.Logger
}

func NewFeedFetcher(userAgent string, logger *zerolog.Logger) *FeedFetcher {
	return &FeedFetcher{
		httpClient: &http.Client{Timeout: feedFetchTimeout},
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Fetch returns candidates for the newest entries of one feed, capped at
// maxFeedEntries. Entries without a title are skipped: a title is the dedup
// fallback identity and an untitled entry cannot be deduplicated.
func (f *FeedFetcher) Fetch(ctx context.Context, src FeedSource) ([]domain.SourceItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errFeedHTTPStatus, resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []domain.SourceItem

	for i, entry := range feed.Items {
		if i >= maxFeedEntries {
			break
		}

		if entry.Title == "" {
			f.logger.Debug().Str("feed", src.URL).Msg("skipping untitled feed entry")
			continue
		}

		items = append(items, feedEntryItem(src, feed.Title, entry))
	}

	return items, nil
}

func feedEntryItem(src FeedSource, feedTitle string, entry *gofeed.Item) domain.SourceItem {
	sourceName := src.Name
	if sourceName == "" {
		sourceName = feedTitle
	}

	body := entry.Content
	if body == "" {
		body = entry.Description
	}

	return domain.SourceItem{
		SourceType:   domain.SourcePodcast,
		SourceName:   sourceName,
		Title:        entry.Title,
		ExternalGUID: entry.GUID,
		Body:         body,
		PublishedAt:  entryPublishedAt(entry),
	}
}

// entryPublishedAt resolves an entry timestamp: the parsed feed date when
// gofeed understood it, a loose dateparse attempt on the raw string
// otherwise, and the zero time when neither works.
func entryPublishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}

	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}

	if entry.Published != "" {
		if ts, err := dateparse.ParseAny(entry.Published); err == nil {
			return ts
		}
	}

	return time.Time{}
}
