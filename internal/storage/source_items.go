package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// SourceItem is an alias for the domain type.
type SourceItem = domain.SourceItem

// ErrSourceItemNotFound is returned when no source item matches the lookup.
var ErrSourceItemNotFound = errors.New("source item not found")

const sourceItemColumns = `id, source_type, source_name, title, title_prefix, external_guid,
	body, published_at, status, duplicate_of, duplicate_rule, created_at, processed_at`

func (db *DB) SaveSourceItem(ctx context.Context, item *SourceItem) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO source_items
			(id, source_type, source_name, title, title_prefix, external_guid,
			 body, published_at, status, duplicate_of, duplicate_rule)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		toUUID(item.ID), string(item.SourceType), SanitizeUTF8(item.SourceName),
		SanitizeUTF8(item.Title), SanitizeUTF8(item.TitlePrefix), item.ExternalGUID,
		SanitizeUTF8(item.Body), toTimestamptz(item.PublishedAt), item.Status,
		nullableUUID(item.DuplicateOf), item.DuplicateRule,
	)
	if err != nil {
		return fmt.Errorf("save source item: %w", err)
	}

	return nil
}

// FindSourceItemByGUID looks up a stored item by its stable external identity.
// Duplicate-skipped rows keep their guid for the audit trail but are excluded
// here, so the same anchor item keeps matching on every re-poll.
func (db *DB) FindSourceItemByGUID(ctx context.Context, guid string) (*SourceItem, error) {
	return db.findSourceItem(ctx,
		`WHERE external_guid = $1 AND external_guid <> '' AND status <> 'duplicate_skipped'`,
		guid)
}

// FindSourceItemByTitle looks up a stored item by exact (source, title) match.
// Duplicate-skipped rows are excluded so a skip never becomes a dedup anchor.
func (db *DB) FindSourceItemByTitle(ctx context.Context, sourceName, title string) (*SourceItem, error) {
	return db.findSourceItem(ctx,
		`WHERE source_name = $1 AND title = $2 AND status <> 'duplicate_skipped'`,
		sourceName, title)
}

// FindSourceItemByTitlePrefix looks up a stored item from the same source
// whose normalized title prefix matches. The relation is prefix-of in either
// direction: re-derived titles may drop or add a subtitle, so "Fed Signals
// Pivot" must still match "Fed Signals Pivot — Special Edition".
func (db *DB) FindSourceItemByTitlePrefix(ctx context.Context, sourceName, prefix string) (*SourceItem, error) {
	if prefix == "" {
		return nil, ErrSourceItemNotFound
	}

	return db.findSourceItem(ctx,
		`WHERE source_name = $1
		   AND (title_prefix LIKE $2 || '%' OR $3 LIKE title_prefix || '%')
		   AND status <> 'duplicate_skipped'`,
		sourceName, escapeLike(prefix), prefix)
}

// escapeLike escapes LIKE metacharacters so a title prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (db *DB) findSourceItem(ctx context.Context, where string, args ...interface{}) (*SourceItem, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+sourceItemColumns+` FROM source_items `+where+` LIMIT 1`, args...)

	item, err := scanSourceItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceItemNotFound
		}

		return nil, fmt.Errorf("find source item: %w", err)
	}

	return item, nil
}

// GetUnprocessedSourceItems returns the oldest unprocessed items up to limit.
func (db *DB) GetUnprocessedSourceItems(ctx context.Context, limit int) ([]SourceItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+sourceItemColumns+`
		FROM source_items
		WHERE status = 'unprocessed'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get unprocessed source items: %w", err)
	}
	defer rows.Close()

	var items []SourceItem

	for rows.Next() {
		item, err := scanSourceItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source item: %w", err)
		}

		items = append(items, *item)
	}

	return items, rows.Err()
}

// CountUnprocessedSourceItems reports the ingestion backlog size.
func (db *DB) CountUnprocessedSourceItems(ctx context.Context) (int, error) {
	var count int
	if err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM source_items WHERE status = 'unprocessed'`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unprocessed source items: %w", err)
	}

	return count, nil
}

// GetUnpromotedSourceItems returns processed items that have not yet been
// promoted into an insight, newest first. The title comparison matches the
// content_items unique key, so an item whose title already exists as an
// insight never comes back.
func (db *DB) GetUnpromotedSourceItems(ctx context.Context, limit int) ([]SourceItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+sourceItemColumns+`
		FROM source_items s
		WHERE s.status = 'processed'
		  AND NOT EXISTS (
			SELECT 1 FROM content_items c
			WHERE c.content_type = 'insight' AND c.title = s.title
		  )
		ORDER BY s.published_at DESC NULLS LAST, s.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get unpromoted source items: %w", err)
	}
	defer rows.Close()

	var items []SourceItem

	for rows.Next() {
		item, err := scanSourceItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source item: %w", err)
		}

		items = append(items, *item)
	}

	return items, rows.Err()
}

func nullableUUID(id string) pgtype.UUID {
	if id == "" {
		return pgtype.UUID{Valid: false}
	}

	return toUUID(id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSourceItem(row rowScanner) (*SourceItem, error) {
	var (
		item        SourceItem
		id, dupOf   pgtype.UUID
		sourceType  string
		published   pgtype.Timestamptz
		createdAt   pgtype.Timestamptz
		processedAt pgtype.Timestamptz
	)

	if err := row.Scan(&id, &sourceType, &item.SourceName, &item.Title, &item.TitlePrefix,
		&item.ExternalGUID, &item.Body, &published, &item.Status, &dupOf,
		&item.DuplicateRule, &createdAt, &processedAt); err != nil {
		return nil, err
	}

	item.ID = fromUUID(id)
	item.SourceType = domain.SourceType(sourceType)
	item.DuplicateOf = fromUUID(dupOf)
	item.PublishedAt = fromTimestamptz(published)
	item.CreatedAt = fromTimestamptz(createdAt)
	item.ProcessedAt = fromTimestamptz(processedAt)

	return &item, nil
}

// windowForDate bounds a calendar day in UTC.
func windowForDate(date time.Time) (time.Time, time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	return day, day.AddDate(0, 0, 1)
}
