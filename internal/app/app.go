// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Worker mode: feed/inbox ingestion plus the extraction pipeline
//   - Aggregate mode: the daily scoring cycle, content promotion and
//     maintenance, export
//   - Export mode: one-shot site snapshot export
//   - Curate mode: one-shot operator actions on content items
//   - Serve mode: standalone health and metrics server
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/ingest"
	"github.com/quietrade/ticker-digest/internal/llm"
	"github.com/quietrade/ticker-digest/internal/output/export"
	"github.com/quietrade/ticker-digest/internal/platform/config"
	"github.com/quietrade/ticker-digest/internal/platform/observability"
	"github.com/quietrade/ticker-digest/internal/platform/schedule"
	"github.com/quietrade/ticker-digest/internal/platform/worker"
	"github.com/quietrade/ticker-digest/internal/process/aggregator"
	"github.com/quietrade/ticker-digest/internal/process/dedup"
	"github.com/quietrade/ticker-digest/internal/process/lifecycle"
	"github.com/quietrade/ticker-digest/internal/process/pipeline"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

const statsRefreshInterval = time.Minute

// promoteBatchSize bounds how many processed items one cycle promotes; a
// large backlog drains over successive cycles.
const promoteBatchSize = 50

// App holds the application dependencies and provides methods to run
// different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunServe runs the standalone HTTP mode.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().Msg("Starting serve mode")

	return a.StartHealthServer(ctx)
}

// RunWorker runs ingestion and the extraction pipeline in one loop. Each
// poll drains a pipeline batch; ingestion and stats refresh run as periodic
// tasks on their own intervals.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Msg("Starting worker mode")

	extractor := llm.New(llm.Config{
		APIKey:       a.cfg.LLMAPIKey,
		Model:        a.cfg.LLMModel,
		RateLimitRPS: a.cfg.RateLimitRPS,
	}, a.logger)

	pipe := pipeline.New(a.database, extractor, a.cfg.WorkerBatchSize, a.logger)
	resolver := dedup.New(a.database, a.logger)
	ingestor := ingest.NewIngestor(a.database, resolver, a.logger)
	feeds := ingest.NewFeedFetcher(a.cfg.UserAgent, a.logger)
	inbox := ingest.NewInbox(a.cfg.NewsletterDir, a.logger)

	return worker.Loop(ctx, worker.Config{
		Name:         "extraction",
		PollInterval: a.cfg.WorkerPollInterval,
		Process: func(ctx context.Context) error {
			_, err := pipe.ProcessBatch(ctx)
			return err
		},
		PeriodicTasks: []worker.PeriodicTask{
			{
				Name:     "ingest",
				Interval: a.cfg.IngestPoll,
				Run: func(ctx context.Context) {
					a.runIngest(ctx, ingestor, feeds, inbox)
				},
			},
			{
				Name:     "stats",
				Interval: statsRefreshInterval,
				Run:      a.refreshStats,
			},
		},
		Logger: a.logger,
	})
}

func (a *App) runIngest(ctx context.Context, ingestor *ingest.Ingestor, feeds *ingest.FeedFetcher, inbox *ingest.Inbox) {
	defer worker.RecoverPanic(a.logger, "ingest")

	for _, src := range a.cfg.FeedSources() {
		items, err := feeds.Fetch(ctx, ingest.FeedSource{Name: src.Name, URL: src.URL})
		if err != nil {
			a.logger.Error().Err(err).Str("feed", src.URL).Msg("feed fetch failed")
			continue
		}

		for i := range items {
			if _, err := ingestor.Accept(ctx, &items[i]); err != nil {
				a.logger.Error().Err(err).Str("title", items[i].Title).Msg("feed item not accepted")
			}
		}
	}

	candidates, err := inbox.Scan()
	if err != nil {
		a.logger.Error().Err(err).Msg("inbox scan failed")
		return
	}

	for i := range candidates {
		candidate := &candidates[i]

		if _, err := ingestor.Accept(ctx, &candidate.Item); err != nil {
			a.logger.Error().Err(err).Str("path", candidate.Path).Msg("newsletter drop not accepted")
			continue
		}

		if err := inbox.Archive(candidate.Path); err != nil {
			a.logger.Error().Err(err).Str("path", candidate.Path).Msg("newsletter drop not archived")
		}
	}
}

// RunAggregate runs the daily scoring cycle. With once set it runs a single
// cycle (for today, or for the date override when given) and returns;
// otherwise it waits for the configured wall-clock slot every day.
func (a *App) RunAggregate(ctx context.Context, once bool, date time.Time) error {
	a.logger.Info().Msg("Starting aggregate mode")

	agg := aggregator.New(a.database, a.logger)
	manager := lifecycle.New(a.database, a.contentLimits(), a.logger)
	projector := a.newProjector()

	if once {
		if date.IsZero() {
			date = time.Now().UTC()
		}

		return a.runCycle(ctx, agg, manager, projector, date)
	}

	daily, err := schedule.ParseDaily(a.cfg.AggregateAt, "")
	if err != nil {
		return fmt.Errorf("parse aggregation schedule: %w", err)
	}

	for {
		next := daily.Next(time.Now())
		a.logger.Info().Time("next_run", next).Msg("waiting for next aggregation slot")

		if err := worker.WaitUntil(ctx, next); err != nil {
			return err
		}

		if err := a.runCycle(ctx, agg, manager, projector, time.Now().UTC()); err != nil {
			a.logger.Error().Err(err).Msg("aggregation cycle failed")
		}
	}
}

func (a *App) runCycle(ctx context.Context, agg *aggregator.Aggregator, manager *lifecycle.Manager, projector *export.Projector, date time.Time) error {
	count, err := agg.RunCycle(ctx, date)
	if err != nil {
		if errors.Is(err, aggregator.ErrCycleInProgress) {
			a.logger.Warn().Msg("another cycle holds the lock, skipping")
			return nil
		}

		return err
	}

	a.runPromotions(ctx, manager)

	archived, err := manager.RunMaintenance(ctx, date)
	if err != nil {
		return fmt.Errorf("content maintenance: %w", err)
	}

	if archived > 0 {
		a.logger.Info().Int("archived", archived).Msg("content maintenance complete")
	}

	// A day with nothing scored produces no new artifacts; the site keeps
	// serving the previous snapshot.
	if count == 0 {
		a.logger.Info().Str("date", date.Format("2006-01-02")).Msg("no tickers scored, skipping export")
		return nil
	}

	return projector.WriteSnapshot(ctx, date)
}

// runPromotions moves processed source items onto the main page as insights
// and routes mined term candidates through auto-curation. Per-item failures
// are logged and skipped; the cycle's scoring and export never hinge on one
// bad item.
func (a *App) runPromotions(ctx context.Context, manager *lifecycle.Manager) {
	items, err := a.database.GetUnpromotedSourceItems(ctx, promoteBatchSize)
	if err != nil {
		a.logger.Error().Err(err).Msg("load unpromoted items failed")
		return
	}

	for i := range items {
		item := &items[i]

		tickers, err := a.database.GetTickersForSourceItem(ctx, item.ID)
		if err != nil {
			a.logger.Error().Err(err).Str("title", item.Title).Msg("load item tickers failed")
			continue
		}

		insight := lifecycle.NewInsightFromSource(item, tickers, time.Now().UTC())

		promoted, err := manager.Promote(ctx, insight)
		if err != nil {
			a.logger.Error().Err(err).Str("title", item.Title).Msg("insight promotion failed")
			continue
		}

		if promoted {
			a.logger.Info().Str("title", item.Title).Msg("insight promoted")
		}

		for _, candidate := range lifecycle.ExtractTermCandidates(item.Body, item.SourceName) {
			if _, err := manager.CurateTerm(ctx, candidate); err != nil {
				a.logger.Error().Err(err).Str("term", candidate.Title).Msg("term curation failed")
			}
		}
	}
}

// RunCurate applies one operator action to a content item and exits.
func (a *App) RunCurate(ctx context.Context, action string, id int64, reason string) error {
	manager := lifecycle.New(a.database, a.contentLimits(), a.logger)

	switch action {
	case "archive":
		return manager.Archive(ctx, id, reason)
	case "restore":
		return manager.Restore(ctx, id)
	case "graduate":
		return manager.GraduateTerm(ctx, id)
	default:
		return fmt.Errorf("unknown curate action %q", action)
	}
}

// RunExport writes the site snapshot and exits. A zero date exports the
// latest scored date.
func (a *App) RunExport(ctx context.Context, date time.Time) error {
	a.logger.Info().Msg("Starting export mode")

	return a.newProjector().WriteSnapshot(ctx, date)
}

func (a *App) newProjector() *export.Projector {
	return export.NewProjector(a.database, a.cfg.ExportDir, export.Limits{
		Insights:      a.cfg.MaxInsights,
		Definitions:   a.cfg.MaxDefinitions,
		EmergentTerms: a.cfg.MaxEmergentTerms,
	}, a.logger)
}

func (a *App) contentLimits() lifecycle.Limits {
	return lifecycle.Limits{
		Insights:      a.cfg.MaxInsights,
		Definitions:   a.cfg.MaxDefinitions,
		EmergentTerms: a.cfg.MaxEmergentTerms,
	}
}

func (a *App) refreshStats(ctx context.Context) {
	defer worker.RecoverPanic(a.logger, "stats refresh")

	stats, err := a.database.GetStats(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("stats refresh failed")
		return
	}

	observability.StatsTableRows.WithLabelValues("source_items").Set(float64(stats.SourceItems))
	observability.StatsTableRows.WithLabelValues("ticker_mentions").Set(float64(stats.Mentions))
	observability.StatsTableRows.WithLabelValues("daily_scores").Set(float64(stats.DailyScores))
	observability.StatsTableRows.WithLabelValues("content_items").Set(float64(stats.ContentItems))

	counts, err := a.database.CountTodayMentionsByType(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("mention counts refresh failed")
		return
	}

	for sourceType, count := range counts {
		observability.StatsMentionsToday.WithLabelValues(sourceType).Set(float64(count))
	}

	for _, contentType := range []domain.ContentType{
		domain.ContentInsight, domain.ContentDefinition, domain.ContentEmergentTerm,
	} {
		count, err := a.database.CountActiveContent(ctx, contentType)
		if err != nil {
			a.logger.Error().Err(err).Str("type", string(contentType)).Msg("content count refresh failed")
			continue
		}

		observability.StatsContentOnMain.WithLabelValues(string(contentType)).Set(float64(count))
	}
}
