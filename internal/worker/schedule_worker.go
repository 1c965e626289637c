package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/service"
)

// Runner executes one notifier cycle.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (service.RunReport, error)
}

// ScheduleWorker repeats the notifier cycle and sleeps between cycles for
// the duration chosen by service.SleepAt.
type ScheduleWorker struct {
	runner  Runner
	tracker *service.StatusTracker
	log     zerolog.Logger

	// now and sleepFor are replaced in tests.
	now      func() time.Time
	sleepFor func(time.Time) time.Duration
}

// NewScheduleWorker creates a new ScheduleWorker. tracker may be nil.
func NewScheduleWorker(runner Runner, tracker *service.StatusTracker, log zerolog.Logger) *ScheduleWorker {
	return &ScheduleWorker{
		runner:   runner,
		tracker:  tracker,
		log:      log.With().Str("component", "schedule_worker").Logger(),
		now:      time.Now,
		sleepFor: service.SleepAt,
	}
}

// Start runs cycles until ctx is cancelled. Cycle errors are logged and the
// loop continues with the next window.
func (w *ScheduleWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for ctx.Err() == nil {
		w.cycle(ctx)

		now := w.now()
		wait := w.sleepFor(now)
		next := now.Add(wait)
		if w.tracker != nil {
			w.tracker.SetNextWake(next)
		}
		w.log.Info().
			Dur("sleep", wait).
			Time("next_wake", next).
			Msg("Sleeping until next window")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	w.log.Info().Msg("Worker stopped")
}

func (w *ScheduleWorker) cycle(ctx context.Context) {
	report, err := w.runner.RunOnce(ctx, w.now())
	if w.tracker != nil {
		w.tracker.Record(report)
	}
	if err != nil {
		w.log.Error().
			Err(err).
			Str("run_id", report.RunID).
			Msg("Cycle failed")
		return
	}
	w.log.Info().
		Str("run_id", report.RunID).
		Str("mode", string(report.Mode)).
		Bool("delivered", report.Delivered).
		Msg("Cycle complete")
}
