package db

import (
	"context"
	"fmt"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// GetKeywordTerms loads the configurable weighted term sets. The lists are
// tuning parameters, not code: editing the table changes scoring behavior
// without a rebuild.
func (db *DB) GetKeywordTerms(ctx context.Context) ([]domain.KeywordTerm, error) {
	rows, err := db.Pool.Query(ctx, `SELECT category, term, weight FROM keyword_terms ORDER BY category, term`)
	if err != nil {
		return nil, fmt.Errorf("get keyword terms: %w", err)
	}
	defer rows.Close()

	var terms []domain.KeywordTerm

	for rows.Next() {
		var (
			t        domain.KeywordTerm
			category string
		)

		if err := rows.Scan(&category, &t.Term, &t.Weight); err != nil {
			return nil, fmt.Errorf("scan keyword term: %w", err)
		}

		t.Category = domain.KeywordCategory(category)

		terms = append(terms, t)
	}

	return terms, rows.Err()
}
