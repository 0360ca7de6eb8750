package lifecycle

import (
	"regexp"
	"sort"
	"strings"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

// Emergent-term candidates are mined from source bodies two ways: explicit
// quoted coinages followed by a definition, and capitalized multi-word
// phrases that recur within the same body.
var (
	quotedTermPattern      = regexp.MustCompile(`"([^"]{3,50})"[:\s-]+([^.]{10,200})`)
	capitalizedTermPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,4})\b`)
)

// Relevance assigned to a freshly mined candidate. A term with an explicit
// definition starts higher; both land below the auto-promotion floor so new
// terms need corroboration before reaching the main page.
const (
	definedTermRelevance   = 50
	undefinedTermRelevance = 30

	minTermRunes = 5
	maxTermRunes = 60

	minPhraseChars       = 10
	minPhraseOccurrences = 2
)

// commonPhraseWords are sentence-leading words that the capitalized-phrase
// pattern picks up constantly; a phrase starting with one is noise.
var commonPhraseWords = map[string]struct{}{
	"The": {}, "And": {}, "But": {}, "For": {}, "With": {},
	"This": {}, "That": {}, "From": {}, "Have": {}, "Been": {},
}

// ExtractTermCandidates mines emergent-term candidates from one source
// item's body. Candidates are deduplicated case-insensitively within the
// item; cross-item corroboration happens at curation time.
func ExtractTermCandidates(body, sourceName string) []*db.ContentItem {
	var candidates []*db.ContentItem

	seen := make(map[string]struct{})

	add := func(term, definition string, relevance int) {
		term = strings.TrimSpace(term)
		if !validTerm(term) {
			return
		}

		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			return
		}

		seen[key] = struct{}{}

		candidates = append(candidates, &db.ContentItem{
			ContentType:    domain.ContentEmergentTerm,
			Title:          term,
			Body:           strings.TrimSpace(definition),
			SourceName:     sourceName,
			RelevanceScore: relevance,
			MentionCount:   1,
			SourceCount:    1,
		})
	}

	for _, match := range quotedTermPattern.FindAllStringSubmatch(body, -1) {
		add(match[1], match[2], definedTermRelevance)
	}

	phraseCounts := make(map[string]int)
	for _, match := range capitalizedTermPattern.FindAllStringSubmatch(body, -1) {
		phraseCounts[match[1]]++
	}

	phrases := make([]string, 0, len(phraseCounts))
	for phrase := range phraseCounts {
		phrases = append(phrases, phrase)
	}

	sort.Strings(phrases)

	for _, phrase := range phrases {
		if len(phrase) <= minPhraseChars || phraseCounts[phrase] < minPhraseOccurrences {
			continue
		}

		if firstWordIsCommon(phrase) {
			continue
		}

		add(phrase, "", undefinedTermRelevance)
	}

	return candidates
}

func validTerm(term string) bool {
	runes := []rune(term)
	if len(runes) < minTermRunes || len(runes) > maxTermRunes {
		return false
	}

	if term == strings.ToUpper(term) {
		return false
	}

	if strings.ContainsAny(term, "0123456789") {
		return false
	}

	return true
}

func firstWordIsCommon(phrase string) bool {
	first, _, _ := strings.Cut(phrase, " ")
	_, ok := commonPhraseWords[first]

	return ok
}
