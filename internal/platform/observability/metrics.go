package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceItemsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_source_items_ingested_total",
		Help: "The total number of ingested source items",
	}, []string{"source_type"})

	DedupDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_dedup_decisions_total",
		Help: "The total number of dedup decisions by rule (new items count under rule=none)",
	}, []string{"rule"})

	PipelineProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_pipeline_processed_total",
		Help: "The total number of source items processed by the extraction pipeline",
	}, []string{"status"})

	PipelineBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticker_pipeline_backlog_size",
		Help: "Number of unprocessed source items in the database",
	})

	MentionsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_mentions_extracted_total",
		Help: "The total number of ticker mentions written",
	}, []string{"source_type"})

	ConvictionClamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticker_conviction_clamps_total",
		Help: "The total number of out-of-range conviction scores clamped at the extraction boundary",
	})

	ExtractionDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticker_extraction_dropped_total",
		Help: "The total number of extraction entries dropped for invalid tickers",
	})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticker_llm_request_duration_seconds",
		Help:    "Duration of extraction requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	AggregationCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_aggregation_cycles_total",
		Help: "The total number of aggregation cycles by outcome",
	}, []string{"status"})

	TickersScored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticker_tickers_scored",
		Help: "Number of tickers scored in the last aggregation cycle",
	})

	AggregationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ticker_aggregation_duration_seconds",
		Help:    "Duration in seconds of an aggregation cycle",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	ContentArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_content_archived_total",
		Help: "The total number of content items archived by reason",
	}, []string{"reason"})

	ContentPromoted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_content_promoted_total",
		Help: "The total number of content items promoted to the main page",
	}, []string{"content_type"})

	ExportSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_export_snapshots_total",
		Help: "The total number of site snapshot exports",
	}, []string{"status"})

	StatsTableRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticker_table_rows",
		Help: "Current row counts per table",
	}, []string{"table"})

	StatsMentionsToday = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticker_mentions_today",
		Help: "Mentions recorded today by source type",
	}, []string{"source_type"})

	StatsContentOnMain = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticker_content_on_main",
		Help: "Content items currently on the main page by type",
	}, []string{"content_type"})
)
