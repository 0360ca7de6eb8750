// Package dedup decides whether an incoming source item has already been
// processed, guaranteeing at-most-once mention creation per real-world
// episode or article.
//
// Rules fire in strict order and short-circuit:
//
//  1. stable external identity (feed guid)
//  2. exact (source, title) match
//  3. normalized title prefix within the same source
//
// Titles are sometimes re-derived by different extraction passes and differ
// only in suffix or subtitle; full-string matching is too brittle and
// edit-distance matching risks false positives, so the prefix rule is the
// middle ground. When no rule fires the item is NEW: an occasional duplicate
// mention set skews one day's score recoverably, while a wrongly skipped
// item never reaches the site and nothing flags the loss.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

// PrefixLength bounds the normalized-title comparison.
const PrefixLength = 50

// Rule identifies which dedup rule fired for a duplicate decision.
type Rule string

const (
	RuleGUID        Rule = "guid"
	RuleExactTitle  Rule = "exact_title"
	RuleTitlePrefix Rule = "title_prefix"
)

// Decision is the outcome of resolving one incoming item.
type Decision struct {
	Duplicate   bool
	Rule        Rule
	DuplicateOf string
}

// Repository is the storage surface the resolver needs.
type Repository interface {
	FindSourceItemByGUID(ctx context.Context, guid string) (*db.SourceItem, error)
	FindSourceItemByTitle(ctx context.Context, sourceName, title string) (*db.SourceItem, error)
	FindSourceItemByTitlePrefix(ctx context.Context, sourceName, prefix string) (*db.SourceItem, error)
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)

type Resolver struct {
	database Repository
	logger   *zerolog.Logger
}

func New(database Repository, logger *zerolog.Logger) *Resolver {
	return &Resolver{database: database, logger: logger}
}

// Resolve checks an incoming item against stored source items. The identity
// check runs first because it is cheap and bulletproof; the fuzzy prefix
// check only runs when no stable identity exists.
func (r *Resolver) Resolve(ctx context.Context, item *domain.SourceItem) (Decision, error) {
	if item.ExternalGUID != "" {
		match, err := r.database.FindSourceItemByGUID(ctx, item.ExternalGUID)
		if err != nil && !errors.Is(err, db.ErrSourceItemNotFound) {
			return Decision{}, fmt.Errorf("guid lookup: %w", err)
		}

		if match != nil {
			return r.duplicate(item, match, RuleGUID), nil
		}
	}

	match, err := r.database.FindSourceItemByTitle(ctx, item.SourceName, item.Title)
	if err != nil && !errors.Is(err, db.ErrSourceItemNotFound) {
		return Decision{}, fmt.Errorf("exact title lookup: %w", err)
	}

	if match != nil {
		return r.duplicate(item, match, RuleExactTitle), nil
	}

	match, err = r.database.FindSourceItemByTitlePrefix(ctx, item.SourceName, NormalizePrefix(item.Title))
	if err != nil && !errors.Is(err, db.ErrSourceItemNotFound) {
		return Decision{}, fmt.Errorf("title prefix lookup: %w", err)
	}

	if match != nil {
		return r.duplicate(item, match, RuleTitlePrefix), nil
	}

	return Decision{}, nil
}

func (r *Resolver) duplicate(item *domain.SourceItem, match *db.SourceItem, rule Rule) Decision {
	r.logger.Info().
		Str("source", item.SourceName).
		Str("title", item.Title).
		Str("rule", string(rule)).
		Str("duplicate_of", match.ID).
		Msg("skipping duplicate source item")

	return Decision{Duplicate: true, Rule: rule, DuplicateOf: match.ID}
}

// NormalizePrefix lower-cases, NFKC-normalizes, and whitespace-collapses a
// title, then truncates to PrefixLength runes. Stored items keep this value
// in title_prefix so the comparison is a plain index lookup.
func NormalizePrefix(title string) string {
	normalized := norm.NFKC.String(title)
	normalized = strings.ToLower(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	runes := []rune(normalized)
	if len(runes) > PrefixLength {
		runes = runes[:PrefixLength]
	}

	return strings.TrimSpace(string(runes))
}
