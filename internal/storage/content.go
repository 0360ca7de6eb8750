package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// ContentItem is an alias for the domain type.
type ContentItem = domain.ContentItem

// ErrContentNotFound is returned when no content item matches the lookup.
var ErrContentNotFound = errors.New("content item not found")

const contentColumns = `id, content_type, title, body, source_name, source_date, tickers,
	display_on_main, display_order, vote_count, mention_count, source_count,
	relevance_score, status, archived_date, archived_reason, created_at`

// mainPageOrder is the canonical tie-break applied everywhere content is
// listed for display: explicit order first, then newest source material,
// then newest row.
const mainPageOrder = `display_order, source_date DESC NULLS LAST, id DESC`

func (db *DB) SaveContentItem(ctx context.Context, item *ContentItem) error {
	tickers, err := marshalTickers(item.Tickers)
	if err != nil {
		return err
	}

	row := db.Pool.QueryRow(ctx, `
		INSERT INTO content_items
			(content_type, title, body, source_name, source_date, tickers,
			 display_on_main, display_order, vote_count, mention_count, source_count,
			 relevance_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		string(item.ContentType), SanitizeUTF8(item.Title), SanitizeUTF8(item.Body),
		SanitizeUTF8(item.SourceName), toDate(item.SourceDate), tickers,
		item.DisplayOnMain, item.DisplayOrder, item.VoteCount, item.MentionCount,
		item.SourceCount, item.RelevanceScore, item.Status,
	)

	if err := row.Scan(&item.ID); err != nil {
		return fmt.Errorf("save content item: %w", err)
	}

	return nil
}

// FindContentByTitle looks up an item by its unique key within a type.
func (db *DB) FindContentByTitle(ctx context.Context, contentType domain.ContentType, title string) (*ContentItem, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE content_type = $1 AND title = $2`,
		string(contentType), title)

	item, err := scanContentItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContentNotFound
		}

		return nil, fmt.Errorf("find content by title: %w", err)
	}

	return item, nil
}

// GetActiveContent returns all items of a type currently on the main page,
// oldest-last per the canonical ordering.
func (db *DB) GetActiveContent(ctx context.Context, contentType domain.ContentType) ([]ContentItem, error) {
	return db.queryContent(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE content_type = $1 AND display_on_main
		ORDER BY `+mainPageOrder,
		string(contentType))
}

// GetMainPageContent returns items of a type for display, capped at limit.
func (db *DB) GetMainPageContent(ctx context.Context, contentType domain.ContentType, limit int) ([]ContentItem, error) {
	switch contentType {
	case domain.ContentDefinition:
		// Definitions surface by community votes after any explicit order.
		return db.queryContent(ctx, `
			SELECT `+contentColumns+` FROM content_items
			WHERE content_type = $1 AND display_on_main
			ORDER BY display_order, vote_count DESC, source_date DESC NULLS LAST, id DESC
			LIMIT $2`,
			string(contentType), limit)
	case domain.ContentEmergentTerm:
		return db.queryContent(ctx, `
			SELECT `+contentColumns+` FROM content_items
			WHERE content_type = $1 AND display_on_main AND status = 'active'
			ORDER BY display_order, mention_count DESC, source_date DESC NULLS LAST, id DESC
			LIMIT $2`,
			string(contentType), limit)
	default:
		return db.queryContent(ctx, `
			SELECT `+contentColumns+` FROM content_items
			WHERE content_type = $1 AND display_on_main
			ORDER BY `+mainPageOrder+`
			LIMIT $2`,
			string(contentType), limit)
	}
}

// GetAllContent returns every item of a type, active and archived, for the
// archive export.
func (db *DB) GetAllContent(ctx context.Context, contentType domain.ContentType) ([]ContentItem, error) {
	return db.queryContent(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE content_type = $1
		ORDER BY source_date DESC NULLS LAST, id DESC`,
		string(contentType))
}

// CountActiveContent counts items of a type with display_on_main set.
func (db *DB) CountActiveContent(ctx context.Context, contentType domain.ContentType) (int, error) {
	var count int
	if err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM content_items WHERE content_type = $1 AND display_on_main`,
		string(contentType)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active content: %w", err)
	}

	return count, nil
}

// ArchiveContentItem flips an item off the main page with a required reason.
// Emergent terms also leave the active status unless already graduated.
func (db *DB) ArchiveContentItem(ctx context.Context, id int64, reason string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE content_items
		SET display_on_main = FALSE,
		    status = CASE WHEN content_type = 'emergent_term' AND status = 'active'
		                  THEN 'archived' ELSE status END,
		    archived_date = CURRENT_DATE,
		    archived_reason = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("archive content item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrContentNotFound
	}

	return nil
}

// RestoreContentItem puts an archived item back on the main page. Emergent
// terms return to active status.
func (db *DB) RestoreContentItem(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE content_items
		SET display_on_main = TRUE,
		    status = CASE WHEN content_type = 'emergent_term' THEN 'active' ELSE status END,
		    archived_date = NULL,
		    archived_reason = ''
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("restore content item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrContentNotFound
	}

	return nil
}

// ReinforceTerm bumps an emergent term's mention and source counters and
// nudges relevance up, returning the updated item so the caller can
// re-evaluate its promotion thresholds.
func (db *DB) ReinforceTerm(ctx context.Context, id int64) (*ContentItem, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE content_items
		SET mention_count = mention_count + 1,
		    source_count = source_count + 1,
		    relevance_score = LEAST(relevance_score + 5, 100)
		WHERE id = $1 AND content_type = 'emergent_term'
		RETURNING `+contentColumns,
		id)

	item, err := scanContentItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContentNotFound
		}

		return nil, fmt.Errorf("reinforce term: %w", err)
	}

	return item, nil
}

// UpdateContentStatus sets an item's status (e.g. review, graduated).
func (db *DB) UpdateContentStatus(ctx context.Context, id int64, status string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE content_items SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update content status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrContentNotFound
	}

	return nil
}

func (db *DB) queryContent(ctx context.Context, query string, args ...interface{}) ([]ContentItem, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem

	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}

		items = append(items, *item)
	}

	return items, rows.Err()
}

func scanContentItem(row rowScanner) (*ContentItem, error) {
	var (
		item         ContentItem
		contentType  string
		sourceDate   pgtype.Date
		tickersJSON  []byte
		archivedDate pgtype.Date
		createdAt    pgtype.Timestamptz
	)

	if err := row.Scan(&item.ID, &contentType, &item.Title, &item.Body, &item.SourceName,
		&sourceDate, &tickersJSON, &item.DisplayOnMain, &item.DisplayOrder,
		&item.VoteCount, &item.MentionCount, &item.SourceCount, &item.RelevanceScore,
		&item.Status, &archivedDate, &item.ArchivedReason, &createdAt); err != nil {
		return nil, err
	}

	item.ContentType = domain.ContentType(contentType)
	item.SourceDate = fromDate(sourceDate)
	item.ArchivedDate = fromDate(archivedDate)
	item.CreatedAt = fromTimestamptz(createdAt)

	if len(tickersJSON) > 0 {
		if err := json.Unmarshal(tickersJSON, &item.Tickers); err != nil {
			return nil, fmt.Errorf("decode tickers: %w", err)
		}
	}

	return &item, nil
}

func marshalTickers(tickers []string) ([]byte, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(tickers)
	if err != nil {
		return nil, fmt.Errorf("encode tickers: %w", err)
	}

	return data, nil
}
