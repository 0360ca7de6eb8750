// Package worker holds the poll-loop primitives shared by the extraction
// worker and the daily aggregation scheduler: a cancelable loop with
// interleaved periodic tasks, interruptible waits, and panic recovery.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const logFieldWorker = "worker"

// PeriodicTask runs on its own interval interleaved with the main process
// step. Tasks are best-effort: they log their own failures and never stop
// the loop.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Config configures one worker loop.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// PollInterval is the pause between process iterations.
	PollInterval time.Duration

	// Process is called each iteration to drain available work. A returned
	// error is logged and the loop continues; only cancellation stops it.
	Process func(ctx context.Context) error

	// PeriodicTasks run at their configured intervals between iterations.
	PeriodicTasks []PeriodicTask

	// Logger for the worker.
	Logger *zerolog.Logger
}

// Loop polls until the context is canceled, returning the wrapped context
// error. Process errors never stop the loop: a transient storage or
// extraction failure should cost one iteration, not the worker.
func Loop(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Msg("starting worker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	lastRun := make([]time.Time, len(cfg.PeriodicTasks))

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("worker loop %s: %w", cfg.Name, ctx.Err())
		default:
		}

		runDueTasks(ctx, cfg.PeriodicTasks, lastRun, logger)

		if cfg.Process != nil {
			if err := cfg.Process(ctx); err != nil {
				logger.Error().Err(err).Str(logFieldWorker, cfg.Name).Msg("process error")
			}
		}

		if err := Wait(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

func runDueTasks(ctx context.Context, tasks []PeriodicTask, lastRun []time.Time, logger *zerolog.Logger) {
	now := time.Now()

	for i := range tasks {
		task := &tasks[i]
		if task.Interval <= 0 || task.Run == nil {
			continue
		}

		if now.Sub(lastRun[i]) >= task.Interval {
			logger.Debug().Str("task", task.Name).Msg("running periodic task")
			task.Run(ctx)
			lastRun[i] = now
		}
	}
}

// Wait blocks for d or until the context is canceled, whichever comes
// first. Returns a wrapped context error on cancellation.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// WaitUntil blocks until t or until the context is canceled. Times in the
// past return immediately.
func WaitUntil(ctx context.Context, t time.Time) error {
	return Wait(ctx, time.Until(t))
}

// RecoverPanic recovers and logs a panic from a goroutine that must not
// take the process down. Use as: defer worker.RecoverPanic(logger, "ingest")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}
