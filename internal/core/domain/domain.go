// Package domain defines the core entities shared across the pipeline:
// source items, ticker mentions, daily scores, and displayable content.
package domain

import "time"

// SourceType identifies where a mention was observed.
type SourceType string

const (
	SourcePodcast    SourceType = "podcast"
	SourceNewsletter SourceType = "newsletter"
)

// Sentiment expressed about a ticker in a single mention.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Timeframe of the view expressed about a ticker.
type Timeframe string

const (
	TimeframeShort       Timeframe = "short_term"
	TimeframeMedium      Timeframe = "medium_term"
	TimeframeLong        Timeframe = "long_term"
	TimeframeUnspecified Timeframe = "unspecified"
)

// Source item processing status.
const (
	StatusUnprocessed      = "unprocessed"
	StatusProcessed        = "processed"
	StatusDuplicateSkipped = "duplicate_skipped"
)

// SourceItem is the unit of dedup: one podcast episode or one newsletter.
type SourceItem struct {
	ID            string
	SourceType    SourceType
	SourceName    string
	Title         string
	TitlePrefix   string
	ExternalGUID  string
	Body          string
	PublishedAt   time.Time
	Status        string
	DuplicateOf   string
	DuplicateRule string
	CreatedAt     time.Time
	ProcessedAt   time.Time
}

// Mention is one observed reference to a ticker in one source item.
// Mentions are immutable once written; reprocessing a source item purges
// its mentions first so a day's score never double counts.
type Mention struct {
	ID                  int64
	SourceItemID        string
	Ticker              string
	SourceType          SourceType
	SourceName          string
	ItemTitle           string
	Context             string
	ConvictionScore     int
	Sentiment           Sentiment
	Timeframe           Timeframe
	IsContrarian        bool
	IsDisruptionFocused bool
	DisruptionHits      int
	WeightedScore       float64
	MentionedAt         time.Time
}

// Conviction level buckets derived from mean conviction.
const (
	ConvictionHigh   = "high"
	ConvictionMedium = "medium"
	ConvictionLow    = "low"
)

// Contrarian signal derived from the sentiment distribution.
const (
	SignalContrarian = "contrarian"
	SignalCrowded    = "crowded"
	SignalNeutral    = "neutral"
)

// DailyScore is one ranked snapshot row per (ticker, date). The whole set
// for a date is recomputed and replaced each aggregation cycle.
type DailyScore struct {
	Ticker             string
	Date               time.Time
	TotalScore         float64
	PodcastMentions    int
	NewsletterMentions int
	DisruptionSignals  int
	UniqueSources      int
	ConvictionLevel    string
	ContrarianSignal   string
	Timeframe          Timeframe
	Rank               int
	ComputedAt         time.Time
}

// ContentType distinguishes the three displayable content families.
type ContentType string

const (
	ContentInsight      ContentType = "insight"
	ContentDefinition   ContentType = "definition"
	ContentEmergentTerm ContentType = "emergent_term"
)

// Content item status. Archival is terminal for normal operation;
// restore is an explicit operator override.
const (
	ContentActive    = "active"
	ContentReview    = "review"
	ContentGraduated = "graduated"
	ContentArchived  = "archived"
)

// ContentItem is a unit with a main-page visibility flag: an insight,
// a definition, or an emergent term.
type ContentItem struct {
	ID             int64
	ContentType    ContentType
	Title          string
	Body           string
	SourceName     string
	SourceDate     time.Time
	Tickers        []string
	DisplayOnMain  bool
	DisplayOrder   int
	VoteCount      int
	MentionCount   int
	SourceCount    int
	RelevanceScore int
	Status         string
	ArchivedDate   time.Time
	ArchivedReason string
	CreatedAt      time.Time
}

// KeywordCategory names a weighted term set used by the scoring engine.
type KeywordCategory string

const (
	KeywordDisruption KeywordCategory = "disruption"
	KeywordConviction KeywordCategory = "conviction"
	KeywordContrarian KeywordCategory = "contrarian"
)

// KeywordTerm is one configurable weighted term.
type KeywordTerm struct {
	Category KeywordCategory
	Term     string
	Weight   float64
}
