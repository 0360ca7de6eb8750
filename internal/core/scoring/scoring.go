// Package scoring converts a ticker's mentions into its weighted daily
// score. Every function here is pure and order-independent: the aggregate
// for a mention set must not depend on insertion order, and nothing outside
// the mention set may contribute to a ticker's ranking.
package scoring

import (
	"sort"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

// Source-type base weights. Podcasts carry twice the editorial effort of a
// newsletter blast, so they count double before any multiplier.
const (
	BasePodcast    = 20.0
	BaseNewsletter = 10.0

	podcastTypeWeight       = 2.0
	newsletterTypeWeight    = 0.5
	newsletterBoostPerHit   = 0.25
	newsletterTypeWeightCap = 1.5

	ConvictionMin = -100
	ConvictionMax = 100
)

// Conviction bucket boundaries (mean conviction, inclusive lower bounds).
const (
	convictionHighFloor   = 70
	convictionMediumFloor = 40
)

// minMentionsForSignal is the mention count below which the sentiment
// distribution is too thin to call contrarian or crowded.
const minMentionsForSignal = 3

// ClampConviction clamps a conviction score into [-100, 100] and reports
// whether clamping occurred. Out-of-range values come from the extraction
// collaborator and must not crash the pipeline; callers count the clamp.
func ClampConviction(score int) (int, bool) {
	if score < ConvictionMin {
		return ConvictionMin, true
	}

	if score > ConvictionMax {
		return ConvictionMax, true
	}

	return score, false
}

// Weight computes a mention's contribution to its ticker's daily score.
//
// base(source_type) x type_weight x (1 + conviction/100). The newsletter
// type weight escalates from 0.5 by 0.25 per disruption-keyword hit, capped
// at 1.5: a low-trust source becomes high-signal when it reaches for
// paradigm-shift language. Negative conviction is a valid bearish-weight
// state, not an error; conviction -100 zeroes the mention.
func Weight(m domain.Mention) float64 {
	var base, typeWeight float64

	switch m.SourceType {
	case domain.SourcePodcast:
		base = BasePodcast
		typeWeight = podcastTypeWeight
	default:
		base = BaseNewsletter

		hits := m.DisruptionHits
		if hits == 0 && m.IsDisruptionFocused {
			// The extractor flagged disruption focus without keyword hits
			// (e.g. paraphrased language); count it as one hit.
			hits = 1
		}

		typeWeight = newsletterTypeWeight + newsletterBoostPerHit*float64(hits)
		if typeWeight > newsletterTypeWeightCap {
			typeWeight = newsletterTypeWeightCap
		}
	}

	conviction, _ := ClampConviction(m.ConvictionScore)

	return base * typeWeight * (1.0 + float64(conviction)/100.0)
}

// Aggregate reduces all of a ticker's mentions for one day to a DailyScore.
// Rank and ComputedAt are assigned by the aggregator, not here. An empty
// mention set returns ok=false: a ticker with no mentions is excluded from
// the day's snapshot entirely, never scored as zero.
func Aggregate(ticker string, mentions []domain.Mention) (domain.DailyScore, bool) {
	if len(mentions) == 0 {
		return domain.DailyScore{}, false
	}

	score := domain.DailyScore{Ticker: ticker}

	sources := make(map[string]struct{})
	timeframes := make(map[domain.Timeframe]int)

	var convictionSum int

	var bullish, bearish int

	for _, m := range mentions {
		score.TotalScore += Weight(m)

		switch m.SourceType {
		case domain.SourcePodcast:
			score.PodcastMentions++
		case domain.SourceNewsletter:
			score.NewsletterMentions++
		}

		if m.IsDisruptionFocused || m.DisruptionHits > 0 {
			score.DisruptionSignals++
		}

		sources[m.SourceName] = struct{}{}
		timeframes[m.Timeframe]++

		conviction, _ := ClampConviction(m.ConvictionScore)
		convictionSum += conviction

		switch m.Sentiment {
		case domain.SentimentBullish:
			bullish++
		case domain.SentimentBearish:
			bearish++
		}
	}

	score.UniqueSources = len(sources)
	score.ConvictionLevel = convictionLevel(float64(convictionSum) / float64(len(mentions)))
	score.ContrarianSignal = contrarianSignal(bullish, bearish, len(mentions))
	score.Timeframe = dominantTimeframe(timeframes)

	return score, true
}

func convictionLevel(mean float64) string {
	switch {
	case mean >= convictionHighFloor:
		return domain.ConvictionHigh
	case mean >= convictionMediumFloor:
		return domain.ConvictionMedium
	default:
		return domain.ConvictionLow
	}
}

// contrarianSignal labels the sentiment distribution. Bearish dominance
// with enough corroboration reads as a contrarian setup; bullish dominance
// beyond 2:1 reads as a crowded trade.
func contrarianSignal(bullish, bearish, total int) string {
	if total < minMentionsForSignal {
		return domain.SignalNeutral
	}

	if bearish > bullish {
		return domain.SignalContrarian
	}

	if bearish*2 < bullish {
		return domain.SignalCrowded
	}

	return domain.SignalNeutral
}

// timeframePriority fixes the tie-break so the mode is order-independent.
var timeframePriority = map[domain.Timeframe]int{
	domain.TimeframeShort:       0,
	domain.TimeframeMedium:      1,
	domain.TimeframeLong:        2,
	domain.TimeframeUnspecified: 3,
}

func dominantTimeframe(counts map[domain.Timeframe]int) domain.Timeframe {
	if len(counts) == 0 {
		return domain.TimeframeUnspecified
	}

	frames := make([]domain.Timeframe, 0, len(counts))
	for tf := range counts {
		frames = append(frames, tf)
	}

	sort.Slice(frames, func(i, j int) bool {
		if counts[frames[i]] != counts[frames[j]] {
			return counts[frames[i]] > counts[frames[j]]
		}

		return timeframePriority[frames[i]] < timeframePriority[frames[j]]
	})

	return frames[0]
}

// SortScores orders a day's scores by total score descending, breaking ties
// by unique source count descending (more corroboration wins), then by
// ticker for a stable, reproducible snapshot.
func SortScores(scores []domain.DailyScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}

		if scores[i].UniqueSources != scores[j].UniqueSources {
			return scores[i].UniqueSources > scores[j].UniqueSources
		}

		return scores[i].Ticker < scores[j].Ticker
	})
}
