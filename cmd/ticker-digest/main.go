package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/app"
	"github.com/quietrade/ticker-digest/internal/platform/config"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "Service mode (worker, aggregate, export, curate, serve)")
	once := flag.Bool("once", false, "Run once and exit (for aggregate mode)")
	date := flag.String("date", "", "Override the cycle date, YYYY-MM-DD (aggregate/export modes)")
	action := flag.String("action", "", "Curate action (archive, restore, graduate)")
	itemID := flag.Int64("id", 0, "Content item ID (curate mode)")
	reason := flag.String("reason", "", "Archive reason (curate mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	// Start health server in background
	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	cycleDate, err := parseDate(*date)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid --date value")
	}

	if err := runMode(ctx, application, runOptions{
		mode:   *mode,
		once:   *once,
		date:   cycleDate,
		action: *action,
		itemID: *itemID,
		reason: *reason,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	return time.Parse("2006-01-02", value)
}

type runOptions struct {
	mode   string
	once   bool
	date   time.Time
	action string
	itemID int64
	reason string
}

func runMode(ctx context.Context, application *app.App, opts runOptions) error {
	switch opts.mode {
	case "worker":
		return application.RunWorker(ctx)
	case "aggregate":
		return application.RunAggregate(ctx, opts.once, opts.date)
	case "export":
		return application.RunExport(ctx, opts.date)
	case "curate":
		return application.RunCurate(ctx, opts.action, opts.itemID, opts.reason)
	case "serve":
		return application.RunServe(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[worker|aggregate|export|curate|serve]", os.Args[0])

		return nil
	}
}
