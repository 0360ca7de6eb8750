package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/process/dedup"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

type fakeStore struct {
	saved []db.SourceItem
}

func (f *fakeStore) SaveSourceItem(_ context.Context, item *db.SourceItem) error {
	f.saved = append(f.saved, *item)
	return nil
}

type fakeResolver struct {
	decision dedup.Decision
}

func (f *fakeResolver) Resolve(_ context.Context, _ *domain.SourceItem) (dedup.Decision, error) {
	return f.decision, nil
}

func TestIngestorAccept(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("new item stored unprocessed with identity assigned", func(t *testing.T) {
		store := &fakeStore{}
		ing := NewIngestor(store, &fakeResolver{}, &logger)

		accepted, err := ing.Accept(ctx, &domain.SourceItem{
			SourceType: domain.SourcePodcast,
			SourceName: "All-In",
			Title:      "Episode 200: The AI Capex Debate",
		})
		if err != nil {
			t.Fatal(err)
		}

		if !accepted {
			t.Fatal("accepted = false, want true")
		}

		if len(store.saved) != 1 {
			t.Fatalf("saved %d items, want 1", len(store.saved))
		}

		got := store.saved[0]
		if got.ID == "" {
			t.Error("ID not assigned")
		}

		if got.Status != domain.StatusUnprocessed {
			t.Errorf("status = %q, want unprocessed", got.Status)
		}

		if got.TitlePrefix != dedup.NormalizePrefix(got.Title) {
			t.Errorf("title prefix = %q, not normalized", got.TitlePrefix)
		}
	})

	t.Run("duplicate recorded as skip with rule and anchor", func(t *testing.T) {
		store := &fakeStore{}
		ing := NewIngestor(store, &fakeResolver{decision: dedup.Decision{
			Duplicate:   true,
			Rule:        dedup.RuleTitlePrefix,
			DuplicateOf: "anchor-id",
		}}, &logger)

		accepted, err := ing.Accept(ctx, &domain.SourceItem{
			SourceType: domain.SourceNewsletter,
			SourceName: "The Diff",
			Title:      "AI Capex Supercycle",
		})
		if err != nil {
			t.Fatal(err)
		}

		if accepted {
			t.Fatal("accepted = true, want false")
		}

		got := store.saved[0]
		if got.Status != domain.StatusDuplicateSkipped {
			t.Errorf("status = %q, want duplicate_skipped", got.Status)
		}

		if got.DuplicateOf != "anchor-id" || got.DuplicateRule != string(dedup.RuleTitlePrefix) {
			t.Errorf("duplicate_of = %q rule = %q, want anchor-id/title_prefix", got.DuplicateOf, got.DuplicateRule)
		}
	})
}

// guidUniqueStore mirrors the storage contract for source items: inserts
// fail when a non-skipped row already holds the same guid, and the dedup
// lookups never return duplicate-skipped rows.
type guidUniqueStore struct {
	saved []db.SourceItem
}

func (f *guidUniqueStore) SaveSourceItem(_ context.Context, item *db.SourceItem) error {
	if item.ExternalGUID != "" && item.Status != domain.StatusDuplicateSkipped {
		for i := range f.saved {
			if f.saved[i].ExternalGUID == item.ExternalGUID && f.saved[i].Status != domain.StatusDuplicateSkipped {
				return errors.New("duplicate key value violates unique constraint \"source_items_guid_uq\"")
			}
		}
	}

	f.saved = append(f.saved, *item)

	return nil
}

func (f *guidUniqueStore) FindSourceItemByGUID(_ context.Context, guid string) (*db.SourceItem, error) {
	for i := range f.saved {
		if f.saved[i].ExternalGUID == guid && guid != "" && f.saved[i].Status != domain.StatusDuplicateSkipped {
			return &f.saved[i], nil
		}
	}

	return nil, db.ErrSourceItemNotFound
}

func (f *guidUniqueStore) FindSourceItemByTitle(_ context.Context, sourceName, title string) (*db.SourceItem, error) {
	for i := range f.saved {
		if f.saved[i].SourceName == sourceName && f.saved[i].Title == title &&
			f.saved[i].Status != domain.StatusDuplicateSkipped {
			return &f.saved[i], nil
		}
	}

	return nil, db.ErrSourceItemNotFound
}

func (f *guidUniqueStore) FindSourceItemByTitlePrefix(_ context.Context, sourceName, prefix string) (*db.SourceItem, error) {
	for i := range f.saved {
		if f.saved[i].SourceName == sourceName && f.saved[i].TitlePrefix == prefix &&
			f.saved[i].Status != domain.StatusDuplicateSkipped {
			return &f.saved[i], nil
		}
	}

	return nil, db.ErrSourceItemNotFound
}

// A feed is polled repeatedly, so the same guid arrives over and over. Every
// re-poll after the first must be recorded as a skip, and the skip's audit
// row must not trip the guid uniqueness that protects real anchors.
func TestAcceptSameGUIDAcrossRepolls(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	store := &guidUniqueStore{}
	ing := NewIngestor(store, dedup.New(store, &logger), &logger)

	episode := func() *domain.SourceItem {
		return &domain.SourceItem{
			SourceType:   domain.SourcePodcast,
			SourceName:   "Odd Lots",
			Title:        "The Case for Uranium",
			ExternalGUID: "odd-lots-501",
		}
	}

	accepted, err := ing.Accept(ctx, episode())
	if err != nil {
		t.Fatal(err)
	}

	if !accepted {
		t.Fatal("first poll: accepted = false, want true")
	}

	for poll := 0; poll < 2; poll++ {
		accepted, err = ing.Accept(ctx, episode())
		if err != nil {
			t.Fatalf("re-poll %d: %v", poll, err)
		}

		if accepted {
			t.Fatalf("re-poll %d: accepted = true, want duplicate skip", poll)
		}
	}

	if len(store.saved) != 3 {
		t.Fatalf("saved %d rows, want 3 (one anchor, two audited skips)", len(store.saved))
	}

	for _, row := range store.saved[1:] {
		if row.Status != domain.StatusDuplicateSkipped {
			t.Errorf("re-polled row status = %q, want duplicate_skipped", row.Status)
		}

		if row.ExternalGUID != "odd-lots-501" {
			t.Errorf("re-polled row guid = %q, want original guid kept for audit", row.ExternalGUID)
		}

		if row.DuplicateOf != store.saved[0].ID || row.DuplicateRule != string(dedup.RuleGUID) {
			t.Errorf("re-polled row = %+v, want anchored to the first row by guid", row)
		}
	}
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Odd Lots</title>
    <item>
      <title>The Case for Uranium</title>
      <guid>odd-lots-501</guid>
      <description>Why $CCJ keeps coming up.</description>
      <pubDate>Mon, 24 Aug 2026 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title></title>
      <guid>odd-lots-502</guid>
    </item>
  </channel>
</rss>`

func TestFeedEntryItem(t *testing.T) {
	feed, err := gofeed.NewParser().Parse(strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatal(err)
	}

	item := feedEntryItem(FeedSource{URL: "https://example.com/feed"}, feed.Title, feed.Items[0])

	if item.SourceType != domain.SourcePodcast {
		t.Errorf("source type = %q, want podcast", item.SourceType)
	}

	if item.SourceName != "Odd Lots" {
		t.Errorf("source name = %q, want feed title fallback", item.SourceName)
	}

	if item.ExternalGUID != "odd-lots-501" {
		t.Errorf("guid = %q", item.ExternalGUID)
	}

	if item.Body == "" {
		t.Error("body empty, want description fallback")
	}

	want := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("published = %v, want %v", item.PublishedAt, want)
	}
}

func TestEntryPublishedAtLooseDate(t *testing.T) {
	ts := entryPublishedAt(&gofeed.Item{Published: "August 24, 2026"})
	if ts.Year() != 2026 || ts.Month() != time.August || ts.Day() != 24 {
		t.Errorf("parsed = %v, want 2026-08-24", ts)
	}
}
