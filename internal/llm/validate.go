package llm

import (
	"strings"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/core/scoring"
)

// DefaultConviction is the fallback when the collaborator omits the field
// and the source text carries no conviction language the pipeline can read
// it from: a mention without any conviction signal is a plain positive
// mention, not a zero-conviction one.
const DefaultConviction = 50

const (
	tickerMinLen = 2
	tickerMaxLen = 5
)

// Report summarizes what Validate changed so the caller can log and count
// it. Dropped entries are gone; clamped and defaulted entries survive with
// corrected fields.
type Report struct {
	Dropped   int
	Clamped   int
	Defaulted int
}

// Validate filters and repairs an extraction in place. Tickers are
// normalized to 2-5 uppercase ASCII letters; entries that cannot be
// normalized are dropped and the rest kept. Conviction is clamped into
// range, sentiment and timeframe fall back to their neutral values. One
// bad entry never discards a whole extraction.
func Validate(extraction *Extraction) Report {
	var report Report

	kept := extraction.Tickers[:0]
	seen := make(map[string]struct{}, len(extraction.Tickers))

	for _, call := range extraction.Tickers {
		ticker, ok := NormalizeTicker(call.Ticker)
		if !ok {
			report.Dropped++
			continue
		}

		if _, dup := seen[ticker]; dup {
			report.Dropped++
			continue
		}

		seen[ticker] = struct{}{}
		call.Ticker = ticker

		// A missing conviction stays nil: the pipeline resolves it from
		// conviction language in the source text before falling back to the
		// default.
		if call.ConvictionScore == nil {
			report.Defaulted++
		} else if clamped, wasClamped := scoring.ClampConviction(*call.ConvictionScore); wasClamped {
			call.ConvictionScore = &clamped
			report.Clamped++
		}

		if !validSentiment(call.Sentiment) {
			call.Sentiment = string(domain.SentimentNeutral)
			report.Defaulted++
		}

		if !validTimeframe(call.Timeframe) {
			call.Timeframe = string(domain.TimeframeUnspecified)
			report.Defaulted++
		}

		kept = append(kept, call)
	}

	extraction.Tickers = kept

	return report
}

// NormalizeTicker uppercases a symbol, strips a leading "$", and rejects
// anything that is not 2-5 ASCII letters. Index names, option chains, and
// hallucinated symbols fail here rather than polluting the rankings.
func NormalizeTicker(raw string) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	ticker = strings.TrimPrefix(ticker, "$")

	if len(ticker) < tickerMinLen || len(ticker) > tickerMaxLen {
		return "", false
	}

	for _, r := range ticker {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}

	return ticker, true
}

func validSentiment(s string) bool {
	switch domain.Sentiment(s) {
	case domain.SentimentBullish, domain.SentimentBearish, domain.SentimentNeutral:
		return true
	}

	return false
}

func validTimeframe(s string) bool {
	switch domain.Timeframe(s) {
	case domain.TimeframeShort, domain.TimeframeMedium, domain.TimeframeLong, domain.TimeframeUnspecified:
		return true
	}

	return false
}
