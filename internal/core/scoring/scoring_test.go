package scoring

import (
	"math/rand"
	"testing"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

const (
	testTicker = "NVDA"
	scoreEps   = 1e-9
)

func podcastMention(source string, conviction int) domain.Mention {
	return domain.Mention{
		Ticker:          testTicker,
		SourceType:      domain.SourcePodcast,
		SourceName:      source,
		ConvictionScore: conviction,
		Sentiment:       domain.SentimentBullish,
		Timeframe:       domain.TimeframeUnspecified,
	}
}

func newsletterMention(source string, conviction, disruptionHits int) domain.Mention {
	return domain.Mention{
		Ticker:          testTicker,
		SourceType:      domain.SourceNewsletter,
		SourceName:      source,
		ConvictionScore: conviction,
		Sentiment:       domain.SentimentBullish,
		Timeframe:       domain.TimeframeUnspecified,
		DisruptionHits:  disruptionHits,
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}

	return diff < scoreEps
}

func TestWeight(t *testing.T) {
	t.Run("podcast conviction 80 weighs 72", func(t *testing.T) {
		got := Weight(podcastMention("p", 80))
		if !almostEqual(got, 72.0) {
			t.Errorf("Weight = %v, want 72.0", got)
		}
	})

	t.Run("podcast conviction 60 weighs 64", func(t *testing.T) {
		got := Weight(podcastMention("p", 60))
		if !almostEqual(got, 64.0) {
			t.Errorf("Weight = %v, want 64.0", got)
		}
	})

	t.Run("newsletter conviction 50 no disruption weighs 7.5", func(t *testing.T) {
		got := Weight(newsletterMention("n", 50, 0))
		if !almostEqual(got, 7.5) {
			t.Errorf("Weight = %v, want 7.5", got)
		}
	})

	t.Run("two disruption hits escalate newsletter type weight to 1.0", func(t *testing.T) {
		// 10 * (0.5 + 2*0.25) * 1.0 = 10
		got := Weight(newsletterMention("n", 0, 2))
		if !almostEqual(got, 10.0) {
			t.Errorf("Weight = %v, want 10.0", got)
		}
	})

	t.Run("newsletter type weight caps at 1.5", func(t *testing.T) {
		got := Weight(newsletterMention("n", 0, 10))
		if !almostEqual(got, 15.0) {
			t.Errorf("Weight = %v, want 15.0", got)
		}
	})

	t.Run("disruption flag without hits counts as one hit", func(t *testing.T) {
		m := newsletterMention("n", 0, 0)
		m.IsDisruptionFocused = true

		got := Weight(m)
		if !almostEqual(got, 7.5) {
			t.Errorf("Weight = %v, want 7.5", got)
		}
	})

	t.Run("monotonically increasing in conviction", func(t *testing.T) {
		prev := Weight(podcastMention("p", -100))
		for c := -99; c <= 100; c++ {
			cur := Weight(podcastMention("p", c))
			if cur < prev {
				t.Fatalf("weight decreased at conviction %d: %v < %v", c, cur, prev)
			}

			prev = cur
		}
	})

	t.Run("podcast strictly outweighs newsletter at equal conviction", func(t *testing.T) {
		for _, c := range []int{-100, -50, 0, 50, 100} {
			p := Weight(podcastMention("s", c))
			n := Weight(newsletterMention("s", c, 0))

			if c == -100 {
				// Both zero at full bearish conviction.
				continue
			}

			if p <= n {
				t.Errorf("conviction %d: podcast %v should exceed newsletter %v", c, p, n)
			}
		}
	})

	t.Run("conviction -100 zeroes the mention", func(t *testing.T) {
		if got := Weight(podcastMention("p", -100)); !almostEqual(got, 0) {
			t.Errorf("Weight = %v, want 0", got)
		}
	})

	t.Run("out of range conviction is clamped not rejected", func(t *testing.T) {
		if got := Weight(podcastMention("p", 250)); !almostEqual(got, 80.0) {
			t.Errorf("Weight = %v, want 80.0 (clamped to 100)", got)
		}
	})
}

func TestClampConviction(t *testing.T) {
	cases := []struct {
		in      int
		want    int
		clamped bool
	}{
		{0, 0, false},
		{100, 100, false},
		{-100, -100, false},
		{101, 100, true},
		{-250, -100, true},
	}

	for _, tc := range cases {
		got, clamped := ClampConviction(tc.in)
		if got != tc.want || clamped != tc.clamped {
			t.Errorf("ClampConviction(%d) = (%d, %v), want (%d, %v)", tc.in, got, clamped, tc.want, tc.clamped)
		}
	}
}

func TestAggregate(t *testing.T) {
	t.Run("empty mention set excludes ticker", func(t *testing.T) {
		if _, ok := Aggregate(testTicker, nil); ok {
			t.Error("empty mention set should not produce a score")
		}
	})

	t.Run("scenario: two podcasts and one newsletter", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("All-In", 80),
			podcastMention("Odd Lots", 60),
			newsletterMention("The Diff", 50, 0),
		}

		score, ok := Aggregate(testTicker, mentions)
		if !ok {
			t.Fatal("expected a score")
		}

		if !almostEqual(score.TotalScore, 143.5) {
			t.Errorf("TotalScore = %v, want 143.5", score.TotalScore)
		}

		if score.PodcastMentions != 2 || score.NewsletterMentions != 1 {
			t.Errorf("mention counts = (%d, %d), want (2, 1)", score.PodcastMentions, score.NewsletterMentions)
		}

		if score.UniqueSources != 3 {
			t.Errorf("UniqueSources = %d, want 3", score.UniqueSources)
		}

		// Mean conviction (80+60+50)/3 = 63.3 falls in [40, 70).
		if score.ConvictionLevel != domain.ConvictionMedium {
			t.Errorf("ConvictionLevel = %q, want medium", score.ConvictionLevel)
		}
	})

	t.Run("single mention still produces a valid score", func(t *testing.T) {
		score, ok := Aggregate(testTicker, []domain.Mention{newsletterMention("n", 0, 0)})
		if !ok {
			t.Fatal("expected a score")
		}

		if !almostEqual(score.TotalScore, 5.0) {
			t.Errorf("TotalScore = %v, want 5.0", score.TotalScore)
		}
	})

	t.Run("order independent under permutation", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("a", 80),
			podcastMention("b", -20),
			newsletterMention("c", 50, 1),
			newsletterMention("a", 10, 0),
			podcastMention("d", 95),
		}
		mentions[2].Sentiment = domain.SentimentBearish
		mentions[3].Timeframe = domain.TimeframeLong

		want, _ := Aggregate(testTicker, mentions)

		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 20; i++ {
			shuffled := make([]domain.Mention, len(mentions))
			copy(shuffled, mentions)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

			got, _ := Aggregate(testTicker, shuffled)
			if got != want {
				t.Fatalf("aggregate changed under permutation: %+v != %+v", got, want)
			}
		}
	})

	t.Run("unique sources counted by name not occurrence", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("same", 10),
			podcastMention("same", 20),
			podcastMention("same", 30),
		}

		score, _ := Aggregate(testTicker, mentions)
		if score.UniqueSources != 1 {
			t.Errorf("UniqueSources = %d, want 1", score.UniqueSources)
		}
	})

	t.Run("conviction bucket boundaries", func(t *testing.T) {
		cases := []struct {
			conviction int
			want       string
		}{
			{70, domain.ConvictionHigh},
			{69, domain.ConvictionMedium},
			{40, domain.ConvictionMedium},
			{39, domain.ConvictionLow},
		}

		for _, tc := range cases {
			score, _ := Aggregate(testTicker, []domain.Mention{podcastMention("p", tc.conviction)})
			if score.ConvictionLevel != tc.want {
				t.Errorf("conviction %d: level = %q, want %q", tc.conviction, score.ConvictionLevel, tc.want)
			}
		}
	})

	t.Run("contrarian when bearish dominates with three mentions", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("a", 50),
			podcastMention("b", 50),
			podcastMention("c", 50),
		}
		mentions[0].Sentiment = domain.SentimentBearish
		mentions[1].Sentiment = domain.SentimentBearish

		score, _ := Aggregate(testTicker, mentions)
		if score.ContrarianSignal != domain.SignalContrarian {
			t.Errorf("ContrarianSignal = %q, want contrarian", score.ContrarianSignal)
		}
	})

	t.Run("crowded when bullish dominates beyond two to one", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("a", 50),
			podcastMention("b", 50),
			podcastMention("c", 50),
		}

		score, _ := Aggregate(testTicker, mentions)
		if score.ContrarianSignal != domain.SignalCrowded {
			t.Errorf("ContrarianSignal = %q, want crowded", score.ContrarianSignal)
		}
	})

	t.Run("neutral below three mentions regardless of skew", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("a", 50),
			podcastMention("b", 50),
		}
		mentions[0].Sentiment = domain.SentimentBearish
		mentions[1].Sentiment = domain.SentimentBearish

		score, _ := Aggregate(testTicker, mentions)
		if score.ContrarianSignal != domain.SignalNeutral {
			t.Errorf("ContrarianSignal = %q, want neutral", score.ContrarianSignal)
		}
	})

	t.Run("timeframe is the mode of mention timeframes", func(t *testing.T) {
		mentions := []domain.Mention{
			podcastMention("a", 50),
			podcastMention("b", 50),
			podcastMention("c", 50),
		}
		mentions[0].Timeframe = domain.TimeframeLong
		mentions[1].Timeframe = domain.TimeframeLong
		mentions[2].Timeframe = domain.TimeframeShort

		score, _ := Aggregate(testTicker, mentions)
		if score.Timeframe != domain.TimeframeLong {
			t.Errorf("Timeframe = %q, want long_term", score.Timeframe)
		}
	})
}

func TestSortScores(t *testing.T) {
	t.Run("orders by total score then unique sources", func(t *testing.T) {
		scores := []domain.DailyScore{
			{Ticker: "AAA", TotalScore: 10, UniqueSources: 1},
			{Ticker: "BBB", TotalScore: 20, UniqueSources: 1},
			{Ticker: "CCC", TotalScore: 10, UniqueSources: 3},
		}

		SortScores(scores)

		want := []string{"BBB", "CCC", "AAA"}
		for i, ticker := range want {
			if scores[i].Ticker != ticker {
				t.Fatalf("position %d = %s, want %s", i, scores[i].Ticker, ticker)
			}
		}
	})
}

func TestKeywordSet(t *testing.T) {
	set := NewKeywordSet([]domain.KeywordTerm{
		{Category: domain.KeywordDisruption, Term: "paradigm shift", Weight: 1},
		{Category: domain.KeywordDisruption, Term: "game changer", Weight: 1},
		{Category: domain.KeywordContrarian, Term: "unloved", Weight: 1},
	})

	t.Run("counts each matched term once", func(t *testing.T) {
		text := "A paradigm shift and a real Game Changer; a paradigm shift indeed"
		if got := set.Hits(domain.KeywordDisruption, text); got != 2 {
			t.Errorf("Hits = %d, want 2", got)
		}
	})

	t.Run("categories are independent", func(t *testing.T) {
		if set.HasAny(domain.KeywordContrarian, "a paradigm shift") {
			t.Error("contrarian category should not match disruption terms")
		}
	})

	t.Run("empty text has no hits", func(t *testing.T) {
		if got := set.Hits(domain.KeywordDisruption, ""); got != 0 {
			t.Errorf("Hits = %d, want 0", got)
		}
	})

	t.Run("weights sum into the score", func(t *testing.T) {
		weighted := NewKeywordSet([]domain.KeywordTerm{
			{Category: domain.KeywordDisruption, Term: "paradigm shift", Weight: 1.5},
			{Category: domain.KeywordDisruption, Term: "game changer", Weight: 0.5},
		})

		text := "a paradigm shift and a game changer"
		if got := weighted.Score(domain.KeywordDisruption, text); got != 2.0 {
			t.Errorf("Score = %v, want 2.0", got)
		}

		// A strong term alone counts for two whole hits.
		if got := weighted.Hits(domain.KeywordDisruption, "a paradigm shift paradigm shift"); got != 2 {
			t.Errorf("Hits = %d, want 2 from a weight-1.5 term rounded", got)
		}
	})
}

func TestInferConviction(t *testing.T) {
	set := NewKeywordSet([]domain.KeywordTerm{
		{Category: domain.KeywordConviction, Term: "high conviction", Weight: 1},
		{Category: domain.KeywordConviction, Term: "top pick", Weight: 1},
		{Category: domain.KeywordConviction, Term: "deep dive", Weight: 1},
		{Category: domain.KeywordConviction, Term: "thesis", Weight: 1},
		{Category: domain.KeywordConviction, Term: "strong buy", Weight: 1},
	})

	cases := []struct {
		name string
		text string
		want int
	}{
		{"no conviction language", "a quiet mention", 0},
		{"single phrase", "our top pick this quarter", 25},
		{"two phrases", "a high conviction top pick", 50},
		{"saturates at one hundred", "high conviction top pick deep dive thesis strong buy", 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferConviction(set, tc.text); got != tc.want {
				t.Errorf("InferConviction(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}
