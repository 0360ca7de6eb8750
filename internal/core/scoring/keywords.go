package scoring

import (
	"math"
	"strings"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// KeywordSet is an immutable, lower-cased view of the configurable term
// lists. Term sets are tuning data, not code: they are loaded from the
// keyword_terms table and handed to the engine as a value.
type KeywordSet struct {
	terms map[domain.KeywordCategory][]weightedTerm
}

type weightedTerm struct {
	term   string
	weight float64
}

// NewKeywordSet builds a KeywordSet from stored terms. Empty terms are
// dropped; matching is case-insensitive substring containment.
func NewKeywordSet(terms []domain.KeywordTerm) KeywordSet {
	m := make(map[domain.KeywordCategory][]weightedTerm)

	for _, t := range terms {
		term := strings.ToLower(strings.TrimSpace(t.Term))
		if term == "" {
			continue
		}

		m[t.Category] = append(m[t.Category], weightedTerm{term: term, weight: t.Weight})
	}

	return KeywordSet{terms: m}
}

// Score sums the weights of the category's terms that occur in the text.
// Each term contributes at most once regardless of how often it repeats,
// so the score measures breadth of the category's language, not verbosity.
func (k KeywordSet) Score(category domain.KeywordCategory, text string) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	score := 0.0

	for _, t := range k.terms[category] {
		if strings.Contains(lower, t.term) {
			score += t.weight
		}
	}

	return score
}

// Hits is the weighted score rounded to whole hits. With the default
// weight of 1.0 per term this is a plain distinct-term count; tuned
// weights let a strong term count for more than one hit.
func (k KeywordSet) Hits(category domain.KeywordCategory, text string) int {
	return int(math.Round(k.Score(category, text)))
}

// HasAny reports whether any term of a category occurs in the text.
func (k KeywordSet) HasAny(category domain.KeywordCategory, text string) bool {
	return k.Score(category, text) > 0
}

// convictionPointsPerHit scales conviction-language weight into the 0-100
// conviction range: a single strong phrase like "high conviction" reads as
// 25 points, four distinct phrases saturate the scale.
const convictionPointsPerHit = 25

// InferConviction estimates a conviction score from the conviction-language
// terms present in the text, for mentions where the extractor gave none.
// Returns 0 when the text carries no conviction language.
func InferConviction(k KeywordSet, text string) int {
	score := k.Score(domain.KeywordConviction, text)
	if score <= 0 {
		return 0
	}

	conviction := int(math.Round(convictionPointsPerHit * score))
	if conviction > 100 {
		conviction = 100
	}

	return conviction
}
